package state

import (
	"fmt"

	"crowdfund/core/types"
)

type storedEvent struct {
	Type   string
	Keys   []string
	Values []string
}

// EventCount returns the number of records in the scoped event log.
func (m *Manager) EventCount() (uint64, error) {
	var count uint64
	if _, err := m.KVGet(eventCountKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// AppendEvent adds evt to the scoped event log and returns the sequence number
// assigned to it. Sequences start at 1.
func (m *Manager) AppendEvent(evt *types.Event) (uint64, error) {
	if evt == nil || evt.Type == "" {
		return 0, fmt.Errorf("state: event type required")
	}
	count, err := m.EventCount()
	if err != nil {
		return 0, err
	}
	seq := count + 1
	stored := storedEvent{Type: evt.Type}
	for _, k := range evt.SortedKeys() {
		stored.Keys = append(stored.Keys, k)
		stored.Values = append(stored.Values, evt.Attributes[k])
	}
	if err := m.KVPut(eventKey(seq), &stored); err != nil {
		return 0, err
	}
	if err := m.KVPut(eventCountKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// Events returns up to limit records starting at sequence from. A limit of
// zero returns every remaining record.
func (m *Manager) Events(from uint64, limit int) ([]*types.Event, error) {
	count, err := m.EventCount()
	if err != nil {
		return nil, err
	}
	if from == 0 {
		from = 1
	}
	out := make([]*types.Event, 0)
	for seq := from; seq <= count; seq++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		var stored storedEvent
		ok, err := m.KVGet(eventKey(seq), &stored)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("state: event %d missing", seq)
		}
		if len(stored.Keys) != len(stored.Values) {
			return nil, fmt.Errorf("state: event %d corrupt", seq)
		}
		evt := &types.Event{Sequence: seq, Type: stored.Type, Attributes: make(map[string]string, len(stored.Keys))}
		for i, k := range stored.Keys {
			evt.Attributes[k] = stored.Values[i]
		}
		out = append(out, evt)
	}
	return out, nil
}
