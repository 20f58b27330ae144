package state

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"crowdfund/storage"
)

// Manager provides typed, RLP-encoded access to campaign state stored in a
// storage.Database. Writes are buffered in an overlay until Commit applies
// them in a single batch; Discard drops them. Managers returned by Scope share
// the overlay of their parent. A Manager is not safe for concurrent use.
type Manager struct {
	db      storage.Database
	prefix  []byte
	overlay *overlay
}

type overlay struct {
	writes  map[string][]byte
	deletes map[string]struct{}
}

func newOverlay() *overlay {
	return &overlay{
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// NewManager creates a state manager on top of db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, overlay: newOverlay()}
}

// Scope returns a manager whose keys live under prefix. The scoped manager
// shares the parent's pending writes and commits with it.
func (m *Manager) Scope(prefix []byte) *Manager {
	if m == nil {
		return nil
	}
	joined := make([]byte, 0, len(m.prefix)+len(prefix))
	joined = append(joined, m.prefix...)
	joined = append(joined, prefix...)
	return &Manager{db: m.db, prefix: joined, overlay: m.overlay}
}

func (m *Manager) kvKey(key []byte) []byte {
	if len(m.prefix) == 0 {
		return ethcrypto.Keccak256(key)
	}
	return ethcrypto.Keccak256(m.prefix, key)
}

func (m *Manager) read(hashed []byte) ([]byte, error) {
	if _, ok := m.overlay.deletes[string(hashed)]; ok {
		return nil, nil
	}
	if data, ok := m.overlay.writes[string(hashed)]; ok {
		return data, nil
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// KVPut stores the RLP encoding of value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	hashed := string(m.kvKey(key))
	delete(m.overlay.deletes, hashed)
	m.overlay.writes[hashed] = encoded
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.read(m.kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes key from state.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := string(m.kvKey(key))
	delete(m.overlay.writes, hashed)
	m.overlay.deletes[hashed] = struct{}{}
	return nil
}

// Dirty reports the number of pending writes and deletes.
func (m *Manager) Dirty() int {
	if m == nil || m.overlay == nil {
		return 0
	}
	return len(m.overlay.writes) + len(m.overlay.deletes)
}

// Commit writes every pending change to the database in one batch and clears
// the overlay. Nothing is written when the batch fails.
func (m *Manager) Commit() error {
	if m.Dirty() == 0 {
		return nil
	}
	batch := m.db.NewBatch()
	for _, key := range sortedKeys(m.overlay.writes) {
		batch.Put([]byte(key), m.overlay.writes[key])
	}
	deletes := make([]string, 0, len(m.overlay.deletes))
	for key := range m.overlay.deletes {
		deletes = append(deletes, key)
	}
	sort.Strings(deletes)
	for _, key := range deletes {
		batch.Delete([]byte(key))
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.reset()
	return nil
}

// Discard drops every pending change.
func (m *Manager) Discard() {
	if m == nil || m.overlay == nil {
		return
	}
	m.reset()
}

func (m *Manager) reset() {
	fresh := newOverlay()
	m.overlay.writes = fresh.writes
	m.overlay.deletes = fresh.deletes
}

func sortedKeys(in map[string][]byte) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
