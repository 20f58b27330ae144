package core

import (
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "crowdfund/core/errors"
	"crowdfund/core/events"
	"crowdfund/native/campaign"
	nativecommon "crowdfund/native/common"
	"crowdfund/native/spending"
	"crowdfund/storage"
)

type collector struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *collector) Emit(evt events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType())
	}
	return out
}

func principal(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

var (
	creator   = principal(0xEE)
	manager   = principal(0x01)
	reviewer1 = principal(0x02)
	reviewer2 = principal(0x03)
	alice     = principal(0xA1)
	bob       = principal(0xB2)
	vendor    = principal(0x77)
)

func testParams(goal int64) *campaign.Params {
	return &campaign.Params{
		StartsAt:           1_000,
		EndsAt:             2_000,
		MinFundingGoal:     big.NewInt(goal),
		MinContribution:    big.NewInt(1),
		MinReviewsRequired: 2,
		Managers:           [][20]byte{manager},
		Reviewers:          [][20]byte{reviewer1, reviewer2},
	}
}

type clock struct {
	mu  sync.Mutex
	now int64
}

func (c *clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func newTestNode(t *testing.T, db storage.Database) (*Node, *clock, *collector) {
	t.Helper()
	node, err := NewNode(db)
	require.NoError(t, err)
	clk := &clock{now: 1_500}
	node.SetNowFunc(clk.Now)
	sink := &collector{}
	node.SetEmitter(sink)
	return node, clk, sink
}

func TestNodeCampaignLifecycle(t *testing.T) {
	node, clk, sink := newTestNode(t, storage.NewMemDB())

	addr, err := node.CreateCampaign(creator, testParams(100))
	require.NoError(t, err)
	inst, err := node.Campaign(addr)
	require.NoError(t, err)

	require.NoError(t, inst.Contribute(alice, big.NewInt(80), big.NewInt(80)))
	require.NoError(t, inst.Contribute(bob, big.NewInt(40), big.NewInt(40)))

	clk.Set(2_001)
	pending, err := inst.Finalize()
	require.NoError(t, err)
	require.Equal(t, int64(120), pending.Int64())

	key, err := inst.CreateSpendingRequest(manager, "venue deposit", vendor, big.NewInt(100))
	require.NoError(t, err)
	require.NoError(t, inst.AcceptSpendingRequest(reviewer1, key))
	require.NoError(t, inst.AcceptSpendingRequest(reviewer2, key))
	require.NoError(t, inst.CompleteSpendingRequest(manager, key))

	req, err := inst.Request(key)
	require.NoError(t, err)
	require.Equal(t, spending.StatusCompleted, req.Status)

	credit, err := inst.PaymentsOf(vendor)
	require.NoError(t, err)
	require.Equal(t, int64(100), credit.Int64())
	withdrawn, err := inst.Withdraw(vendor)
	require.NoError(t, err)
	require.Equal(t, int64(100), withdrawn.Int64())

	summary, err := inst.Summary()
	require.NoError(t, err)
	require.Equal(t, int64(120), summary.Counters.Raised.Int64())
	require.Equal(t, int64(100), summary.Counters.Spent.Int64())
	require.Equal(t, int64(20), summary.Counters.Held.Int64())
	require.Equal(t, int64(20), summary.Counters.PendingBalance.Int64())

	require.Equal(t, []string{
		events.TypeCampaignCreated,
		events.TypeContribution,
		events.TypeContribution,
		events.TypeCampaignFinalized,
		events.TypeSpendingRequestState,
		events.TypeSpendingRequestState,
		events.TypeSpendingRequestState,
		events.TypeCreditQueued,
		events.TypeSpendingRequestState,
		events.TypeWithdrawn,
	}, sink.types())

	log, err := inst.Events(0, 0)
	require.NoError(t, err)
	require.Len(t, log, 9)
	for i, evt := range log {
		require.Equal(t, uint64(i+1), evt.Sequence)
	}
	registryLog, err := node.RegistryEvents(0, 0)
	require.NoError(t, err)
	require.Len(t, registryLog, 1)
	require.Equal(t, events.TypeCampaignCreated, registryLog[0].Type)
}

func TestRejectedOperationLeavesNoTrace(t *testing.T) {
	node, clk, sink := newTestNode(t, storage.NewMemDB())
	addr, err := node.CreateCampaign(creator, testParams(100))
	require.NoError(t, err)
	inst, err := node.Campaign(addr)
	require.NoError(t, err)
	require.NoError(t, inst.Contribute(alice, big.NewInt(10), big.NewInt(10)))
	published := len(sink.types())

	err = inst.Contribute(alice, big.NewInt(10), big.NewInt(9))
	require.ErrorIs(t, err, coreerrors.ErrValueMismatch)

	clk.Set(2_001)
	_, err = inst.Finalize()
	require.NoError(t, err)
	_, err = inst.CreateSpendingRequest(manager, "too much", vendor, big.NewInt(11))
	require.ErrorIs(t, err, coreerrors.ErrInsufficientFunds)

	summary, err := inst.Summary()
	require.NoError(t, err)
	require.Equal(t, int64(10), summary.Counters.Raised.Int64())
	require.Zero(t, summary.Counters.SpendingRequestsCount)
	require.Len(t, sink.types(), published+1, "only the finalize record may be published")
	require.Zero(t, inst.state.Dirty())
}

func TestRefundScenarioPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaigns")
	db, err := storage.NewLevelDB(path)
	require.NoError(t, err)

	node, clk, _ := newTestNode(t, db)
	addr, err := node.CreateCampaign(creator, testParams(1_000))
	require.NoError(t, err)
	inst, err := node.Campaign(addr)
	require.NoError(t, err)
	require.NoError(t, inst.Contribute(alice, big.NewInt(400), big.NewInt(400)))
	require.NoError(t, inst.Contribute(bob, big.NewInt(300), big.NewInt(300)))

	clk.Set(2_500)
	refunded, err := inst.Refund(alice)
	require.NoError(t, err)
	require.Equal(t, int64(400), refunded.Int64())
	db.Close()

	db, err = storage.NewLevelDB(path)
	require.NoError(t, err)
	defer db.Close()
	reopened, clk2, _ := newTestNode(t, db)
	clk2.Set(2_600)

	list, err := reopened.Campaigns()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{addr}, list)

	inst, err = reopened.Campaign(addr)
	require.NoError(t, err)
	refunded, err = inst.Refund(bob)
	require.NoError(t, err)
	require.Equal(t, int64(300), refunded.Int64())

	_, err = inst.Refund(bob)
	require.ErrorIs(t, err, coreerrors.ErrStateConflict)

	summary, err := inst.Summary()
	require.NoError(t, err)
	require.Zero(t, summary.Counters.ContributorsCount)
	require.Equal(t, int64(700), summary.Counters.Refunded.Int64())

	for _, who := range [][20]byte{alice, bob} {
		credit, err := inst.PaymentsOf(who)
		require.NoError(t, err)
		require.Positive(t, credit.Sign())
	}
}

func TestUnknownCampaign(t *testing.T) {
	node, _, _ := newTestNode(t, storage.NewMemDB())
	_, err := node.Campaign(principal(0x42))
	require.ErrorIs(t, err, ErrCampaignNotFound)
	require.ErrorIs(t, err, coreerrors.ErrStateConflict)
}

func TestInvalidCampaignIsNotRegistered(t *testing.T) {
	node, _, sink := newTestNode(t, storage.NewMemDB())
	params := testParams(100)
	params.Reviewers = nil
	_, err := node.CreateCampaign(creator, params)
	require.Error(t, err)
	list, err := node.Campaigns()
	require.NoError(t, err)
	require.Empty(t, list)
	require.Empty(t, sink.types())
}

func TestNodePausesApplyToOpenInstances(t *testing.T) {
	node, _, _ := newTestNode(t, storage.NewMemDB())
	addr, err := node.CreateCampaign(creator, testParams(100))
	require.NoError(t, err)
	inst, err := node.Campaign(addr)
	require.NoError(t, err)

	node.SetPauses(nativecommon.StaticPauses{nativecommon.ModuleCampaign: true})
	err = inst.Contribute(alice, big.NewInt(5), big.NewInt(5))
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	node.SetPauses(nil)
	require.NoError(t, inst.Contribute(alice, big.NewInt(5), big.NewInt(5)))
}

func TestConcurrentContributionsAreSerialised(t *testing.T) {
	node, _, _ := newTestNode(t, storage.NewMemDB())
	addr, err := node.CreateCampaign(creator, testParams(100))
	require.NoError(t, err)
	inst, err := node.Campaign(addr)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			who := principal(byte(0x10 + i%4))
			_ = inst.Contribute(who, big.NewInt(5), big.NewInt(5))
		}(i)
	}
	wg.Wait()

	summary, err := inst.Summary()
	require.NoError(t, err)
	require.Equal(t, int64(100), summary.Counters.Raised.Int64())
	require.Equal(t, uint64(4), summary.Counters.ContributorsCount)
}
