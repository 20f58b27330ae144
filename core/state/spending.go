package state

import (
	"fmt"
	"math/big"

	"crowdfund/native/spending"
)

type storedRequest struct {
	Key             uint64
	Description     string
	Recipient       [20]byte
	Value           *big.Int
	ApprovalsCount  uint64
	RejectionsCount uint64
	Status          uint8
	Voters          [][20]byte
	CreatedAt       uint64
}

// SpendingRequestGet loads the spending request stored at key.
func (m *Manager) SpendingRequestGet(key uint64) (*spending.Request, bool, error) {
	var stored storedRequest
	ok, err := m.KVGet(spendingRequestKey(key), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	status := spending.Status(stored.Status)
	if !status.Valid() {
		return nil, false, fmt.Errorf("state: request %d has unknown status %d", key, stored.Status)
	}
	createdAt, err := fromUnix(stored.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	return &spending.Request{
		Key:             stored.Key,
		Description:     stored.Description,
		Recipient:       stored.Recipient,
		Value:           amountOrZero(stored.Value),
		ApprovalsCount:  stored.ApprovalsCount,
		RejectionsCount: stored.RejectionsCount,
		Status:          status,
		Voters:          append([][20]byte(nil), stored.Voters...),
		CreatedAt:       createdAt,
	}, true, nil
}

// SpendingRequestPut stores req under its key.
func (m *Manager) SpendingRequestPut(req *spending.Request) error {
	if req == nil {
		return fmt.Errorf("state: nil spending request")
	}
	if req.Value != nil && req.Value.Sign() < 0 {
		return fmt.Errorf("state: negative request value")
	}
	createdAt, err := toUnix(req.CreatedAt)
	if err != nil {
		return err
	}
	return m.KVPut(spendingRequestKey(req.Key), &storedRequest{
		Key:             req.Key,
		Description:     req.Description,
		Recipient:       req.Recipient,
		Value:           amountOrZero(req.Value),
		ApprovalsCount:  req.ApprovalsCount,
		RejectionsCount: req.RejectionsCount,
		Status:          uint8(req.Status),
		Voters:          append([][20]byte(nil), req.Voters...),
		CreatedAt:       createdAt,
	})
}
