package spending

import (
	"bytes"
	"math/big"
	"sort"
	"strings"
)

// Status enumerates the lifecycle of a spending request.
type Status uint8

const (
	StatusPending Status = iota
	StatusRejected
	StatusApproved
	StatusCompleted
)

// String returns the canonical status label.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRejected:
		return "REJECTED"
	case StatusApproved:
		return "APPROVED"
	case StatusCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether the status is one of the defined values.
func (s Status) Valid() bool { return s <= StatusCompleted }

// ParseStatus resolves a label produced by String.
func ParseStatus(label string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PENDING":
		return StatusPending, true
	case "REJECTED":
		return StatusRejected, true
	case "APPROVED":
		return StatusApproved, true
	case "COMPLETED":
		return StatusCompleted, true
	}
	return 0, false
}

// Request is a manager's proposal to pay Value from the pending balance to
// Recipient, subject to reviewer votes.
type Request struct {
	Key             uint64     `json:"key"`
	Description     string     `json:"description"`
	Recipient       [20]byte   `json:"recipient"`
	Value           *big.Int   `json:"value"`
	ApprovalsCount  uint64     `json:"approvalsCount"`
	RejectionsCount uint64     `json:"rejectionsCount"`
	Status          Status     `json:"status"`
	Voters          [][20]byte `json:"voters"`
	CreatedAt       int64      `json:"createdAt"`
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Value != nil {
		clone.Value = new(big.Int).Set(r.Value)
	} else {
		clone.Value = big.NewInt(0)
	}
	clone.Voters = append([][20]byte(nil), r.Voters...)
	return &clone
}

// HasVoted reports whether voter already cast a vote on the request.
func (r *Request) HasVoted(voter [20]byte) bool {
	if r == nil {
		return false
	}
	idx := sort.Search(len(r.Voters), func(i int) bool {
		return bytes.Compare(r.Voters[i][:], voter[:]) >= 0
	})
	return idx < len(r.Voters) && r.Voters[idx] == voter
}

// addVoter inserts voter keeping the list sorted. It reports false when the
// voter was already present.
func (r *Request) addVoter(voter [20]byte) bool {
	idx := sort.Search(len(r.Voters), func(i int) bool {
		return bytes.Compare(r.Voters[i][:], voter[:]) >= 0
	})
	if idx < len(r.Voters) && r.Voters[idx] == voter {
		return false
	}
	r.Voters = append(r.Voters, [20]byte{})
	copy(r.Voters[idx+1:], r.Voters[idx:])
	r.Voters[idx] = voter
	return true
}
