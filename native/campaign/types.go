package campaign

import (
	"fmt"
	"math/big"
)

const (
	// RoleManager may create and complete spending requests.
	RoleManager = "ROLE_CAMPAIGN_MANAGER"
	// RoleReviewer may vote on spending requests.
	RoleReviewer = "ROLE_CAMPAIGN_REVIEWER"
)

// Params holds the constructor parameters of a campaign instance. They never
// change after creation.
type Params struct {
	StartsAt           int64      `json:"startsAt"`
	EndsAt             int64      `json:"endsAt"`
	MinFundingGoal     *big.Int   `json:"minFundingGoal"`
	MinContribution    *big.Int   `json:"minContribution"`
	MinReviewsRequired uint64     `json:"minReviewsRequired"`
	Managers           [][20]byte `json:"managers"`
	Reviewers          [][20]byte `json:"reviewers"`
}

// Clone returns a deep copy of the params.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	clone.MinFundingGoal = newBigInt(p.MinFundingGoal)
	clone.MinContribution = newBigInt(p.MinContribution)
	clone.Managers = append([][20]byte(nil), p.Managers...)
	clone.Reviewers = append([][20]byte(nil), p.Reviewers...)
	return &clone
}

// Validate checks the params the registry accepts. The ledger itself trusts
// the stored params.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("campaign: nil params")
	}
	if p.StartsAt < 0 || p.EndsAt < 0 {
		return fmt.Errorf("campaign: timestamps must not be negative")
	}
	if p.StartsAt >= p.EndsAt {
		return fmt.Errorf("campaign: startsAt must be before endsAt")
	}
	if p.MinFundingGoal != nil && p.MinFundingGoal.Sign() < 0 {
		return fmt.Errorf("campaign: minFundingGoal must not be negative")
	}
	if p.MinContribution != nil && p.MinContribution.Sign() < 0 {
		return fmt.Errorf("campaign: minContribution must not be negative")
	}
	if len(p.Managers) == 0 {
		return fmt.Errorf("campaign: at least one manager required")
	}
	if len(p.Reviewers) == 0 {
		return fmt.Errorf("campaign: at least one reviewer required")
	}
	for _, addr := range append(append([][20]byte(nil), p.Managers...), p.Reviewers...) {
		if isZeroAddress(addr) {
			return fmt.Errorf("campaign: role members must be non-zero addresses")
		}
	}
	return nil
}

// Counters are the aggregate ledger totals of one campaign instance.
//
// Held is the value the instance actually holds. Reserved is the value of
// approved requests that have not been completed yet; it is excluded from the
// pending balance on every finalization.
type Counters struct {
	Raised                *big.Int `json:"raised"`
	Refunded              *big.Int `json:"refunded"`
	Spent                 *big.Int `json:"spent"`
	PendingBalance        *big.Int `json:"pendingBalance"`
	Held                  *big.Int `json:"held"`
	Reserved              *big.Int `json:"reserved"`
	ContributorsCount     uint64   `json:"contributorsCount"`
	SpendingRequestsCount uint64   `json:"spendingRequestsCount"`
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{
		Raised:         big.NewInt(0),
		Refunded:       big.NewInt(0),
		Spent:          big.NewInt(0),
		PendingBalance: big.NewInt(0),
		Held:           big.NewInt(0),
		Reserved:       big.NewInt(0),
	}
}

// Clone returns a deep copy with nil amounts normalised to zero.
func (c *Counters) Clone() *Counters {
	if c == nil {
		return NewCounters()
	}
	clone := *c
	clone.Raised = newBigInt(c.Raised)
	clone.Refunded = newBigInt(c.Refunded)
	clone.Spent = newBigInt(c.Spent)
	clone.PendingBalance = newBigInt(c.PendingBalance)
	clone.Held = newBigInt(c.Held)
	clone.Reserved = newBigInt(c.Reserved)
	return &clone
}

// Summary is the read-only view returned to callers.
type Summary struct {
	Params   *Params   `json:"params"`
	Counters *Counters `json:"counters"`
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
