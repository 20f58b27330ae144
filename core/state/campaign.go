package state

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"sort"

	"crowdfund/native/campaign"
)

type storedParams struct {
	StartsAt           uint64
	EndsAt             uint64
	MinFundingGoal     *big.Int
	MinContribution    *big.Int
	MinReviewsRequired uint64
	Managers           [][20]byte
	Reviewers          [][20]byte
}

type storedCounters struct {
	Raised                *big.Int
	Refunded              *big.Int
	Spent                 *big.Int
	PendingBalance        *big.Int
	Held                  *big.Int
	Reserved              *big.Int
	ContributorsCount     uint64
	SpendingRequestsCount uint64
}

func toUnix(v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("state: negative timestamp %d", v)
	}
	return uint64(v), nil
}

func fromUnix(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("state: timestamp %d out of range", v)
	}
	return int64(v), nil
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// CampaignParamsGet loads the campaign params of the scoped instance.
func (m *Manager) CampaignParamsGet() (*campaign.Params, bool, error) {
	var stored storedParams
	ok, err := m.KVGet(campaignParamsKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	startsAt, err := fromUnix(stored.StartsAt)
	if err != nil {
		return nil, false, err
	}
	endsAt, err := fromUnix(stored.EndsAt)
	if err != nil {
		return nil, false, err
	}
	return &campaign.Params{
		StartsAt:           startsAt,
		EndsAt:             endsAt,
		MinFundingGoal:     amountOrZero(stored.MinFundingGoal),
		MinContribution:    amountOrZero(stored.MinContribution),
		MinReviewsRequired: stored.MinReviewsRequired,
		Managers:           append([][20]byte(nil), stored.Managers...),
		Reviewers:          append([][20]byte(nil), stored.Reviewers...),
	}, true, nil
}

// CampaignParamsPut stores the campaign params of the scoped instance.
func (m *Manager) CampaignParamsPut(params *campaign.Params) error {
	if params == nil {
		return fmt.Errorf("state: nil campaign params")
	}
	startsAt, err := toUnix(params.StartsAt)
	if err != nil {
		return err
	}
	endsAt, err := toUnix(params.EndsAt)
	if err != nil {
		return err
	}
	return m.KVPut(campaignParamsKey, &storedParams{
		StartsAt:           startsAt,
		EndsAt:             endsAt,
		MinFundingGoal:     amountOrZero(params.MinFundingGoal),
		MinContribution:    amountOrZero(params.MinContribution),
		MinReviewsRequired: params.MinReviewsRequired,
		Managers:           append([][20]byte(nil), params.Managers...),
		Reviewers:          append([][20]byte(nil), params.Reviewers...),
	})
}

// CampaignCountersGet loads the aggregate counters, returning zeroed counters
// when none were written yet.
func (m *Manager) CampaignCountersGet() (*campaign.Counters, error) {
	var stored storedCounters
	ok, err := m.KVGet(campaignCountersKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return campaign.NewCounters(), nil
	}
	return &campaign.Counters{
		Raised:                amountOrZero(stored.Raised),
		Refunded:              amountOrZero(stored.Refunded),
		Spent:                 amountOrZero(stored.Spent),
		PendingBalance:        amountOrZero(stored.PendingBalance),
		Held:                  amountOrZero(stored.Held),
		Reserved:              amountOrZero(stored.Reserved),
		ContributorsCount:     stored.ContributorsCount,
		SpendingRequestsCount: stored.SpendingRequestsCount,
	}, nil
}

// CampaignCountersPut stores the aggregate counters.
func (m *Manager) CampaignCountersPut(counters *campaign.Counters) error {
	if counters == nil {
		return fmt.Errorf("state: nil campaign counters")
	}
	c := counters.Clone()
	for _, v := range []*big.Int{c.Raised, c.Refunded, c.Spent, c.PendingBalance, c.Held, c.Reserved} {
		if v.Sign() < 0 {
			return fmt.Errorf("state: negative campaign counter %s", v)
		}
	}
	return m.KVPut(campaignCountersKey, &storedCounters{
		Raised:                c.Raised,
		Refunded:              c.Refunded,
		Spent:                 c.Spent,
		PendingBalance:        c.PendingBalance,
		Held:                  c.Held,
		Reserved:              c.Reserved,
		ContributorsCount:     c.ContributorsCount,
		SpendingRequestsCount: c.SpendingRequestsCount,
	})
}

// CampaignContributionGet returns the recorded contribution of addr.
func (m *Manager) CampaignContributionGet(addr [20]byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(contributionKey(addr), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// CampaignContributionPut records the contribution of addr. A zero amount
// removes the entry.
func (m *Manager) CampaignContributionPut(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(contributionKey(addr))
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative contribution")
	}
	return m.KVPut(contributionKey(addr), amount)
}

// SetRole grants role to addr. Members are kept sorted.
func (m *Manager) SetRole(role string, addr []byte) error {
	if role == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	if len(addr) != 20 {
		return fmt.Errorf("state: role member must be 20 bytes")
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return err
	}
	var member [20]byte
	copy(member[:], addr)
	idx := sort.Search(len(members), func(i int) bool {
		return bytes.Compare(members[i][:], member[:]) >= 0
	})
	if idx < len(members) && members[idx] == member {
		return nil
	}
	members = append(members, [20]byte{})
	copy(members[idx+1:], members[idx:])
	members[idx] = member
	return m.KVPut(roleKey(role), members)
}

// RoleMembers lists the members of role in ascending byte order.
func (m *Manager) RoleMembers(role string) ([][20]byte, error) {
	var members [][20]byte
	if _, err := m.KVGet(roleKey(role), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// HasRole reports whether addr holds role. Lookup failures count as "no".
func (m *Manager) HasRole(role string, addr []byte) bool {
	if len(addr) != 20 {
		return false
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return false
	}
	idx := sort.Search(len(members), func(i int) bool {
		return bytes.Compare(members[i][:], addr) >= 0
	})
	return idx < len(members) && bytes.Equal(members[idx][:], addr)
}

// PaymentCreditGet returns the queued credit of payee.
func (m *Manager) PaymentCreditGet(payee [20]byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(paymentCreditKey(payee), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// PaymentCreditPut stores the queued credit of payee. A zero amount removes
// the entry.
func (m *Manager) PaymentCreditPut(payee [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(paymentCreditKey(payee))
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative payment credit")
	}
	return m.KVPut(paymentCreditKey(payee), amount)
}
