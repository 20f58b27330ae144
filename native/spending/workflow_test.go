package spending

import (
	"errors"
	"math/big"
	"testing"

	coreerrors "crowdfund/core/errors"
	"crowdfund/core/events"
	"crowdfund/native/campaign"
	nativecommon "crowdfund/native/common"
)

type memState struct {
	params        *campaign.Params
	counters      *campaign.Counters
	contributions map[[20]byte]*big.Int
	requests      map[uint64]*Request
}

func (m *memState) CampaignParamsGet() (*campaign.Params, bool, error) {
	if m.params == nil {
		return nil, false, nil
	}
	return m.params.Clone(), true, nil
}

func (m *memState) CampaignCountersGet() (*campaign.Counters, error) {
	return m.counters.Clone(), nil
}

func (m *memState) CampaignCountersPut(c *campaign.Counters) error {
	m.counters = c.Clone()
	return nil
}

func (m *memState) CampaignContributionGet(addr [20]byte) (*big.Int, error) {
	if v, ok := m.contributions[addr]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *memState) CampaignContributionPut(addr [20]byte, amount *big.Int) error {
	m.contributions[addr] = new(big.Int).Set(amount)
	return nil
}

func (m *memState) SpendingRequestGet(key uint64) (*Request, bool, error) {
	req, ok := m.requests[key]
	if !ok {
		return nil, false, nil
	}
	return req.Clone(), true, nil
}

func (m *memState) SpendingRequestPut(req *Request) error {
	m.requests[req.Key] = req.Clone()
	return nil
}

type roleSet map[string]map[[20]byte]bool

func (r roleSet) HasRole(role string, addr []byte) bool {
	var key [20]byte
	if len(addr) != len(key) {
		return false
	}
	copy(key[:], addr)
	return r[role][key]
}

type escrowFunc func(payee [20]byte, amount *big.Int) error

func (f escrowFunc) QueueCredit(payee [20]byte, amount *big.Int) error { return f(payee, amount) }

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recordingEmitter) last(t *testing.T) events.SpendingRequestState {
	t.Helper()
	if len(r.events) == 0 {
		t.Fatalf("no events emitted")
	}
	evt, ok := r.events[len(r.events)-1].(events.SpendingRequestState)
	if !ok {
		t.Fatalf("unexpected event type %T", r.events[len(r.events)-1])
	}
	return evt
}

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

var (
	manager   = addr(0x01)
	reviewerA = addr(0x02)
	reviewerB = addr(0x03)
	reviewerC = addr(0x04)
	outsider  = addr(0x05)
	payee     = addr(0x06)
)

const (
	startsAt = int64(100)
	endsAt   = int64(200)
)

type fixture struct {
	state    *memState
	ledger   *campaign.Ledger
	workflow *Workflow
	emitter  *recordingEmitter
	credits  map[[20]byte]*big.Int
	onCredit func()
	now      int64
}

// newFixture funds a campaign with raised, ends it and finalizes it so the
// pending balance equals raised.
func newFixture(t *testing.T, quorum uint64, raised int64) *fixture {
	t.Helper()
	f := &fixture{
		state: &memState{
			params: &campaign.Params{
				StartsAt:           startsAt,
				EndsAt:             endsAt,
				MinFundingGoal:     big.NewInt(1),
				MinContribution:    big.NewInt(1),
				MinReviewsRequired: quorum,
				Managers:           [][20]byte{manager},
				Reviewers:          [][20]byte{reviewerA, reviewerB, reviewerC},
			},
			counters:      campaign.NewCounters(),
			contributions: make(map[[20]byte]*big.Int),
			requests:      make(map[uint64]*Request),
		},
		emitter: &recordingEmitter{},
		credits: make(map[[20]byte]*big.Int),
		now:     startsAt + 1,
	}
	escrow := escrowFunc(func(payee [20]byte, amount *big.Int) error {
		if f.onCredit != nil {
			f.onCredit()
		}
		bal, ok := f.credits[payee]
		if !ok {
			bal = big.NewInt(0)
			f.credits[payee] = bal
		}
		bal.Add(bal, amount)
		return nil
	})
	f.ledger = campaign.NewLedger()
	f.ledger.SetState(f.state)
	f.ledger.SetEscrow(escrow)
	f.ledger.SetNowFunc(func() int64 { return f.now })

	f.workflow = NewWorkflow()
	f.workflow.SetState(f.state)
	f.workflow.SetLedger(f.ledger)
	f.workflow.SetEscrow(escrow)
	f.workflow.SetEmitter(f.emitter)
	f.workflow.SetRoles(roleSet{
		campaign.RoleManager:  {manager: true},
		campaign.RoleReviewer: {reviewerA: true, reviewerB: true, reviewerC: true},
	})

	if raised > 0 {
		if err := f.ledger.Contribute(addr(0xC0), big.NewInt(raised), big.NewInt(raised)); err != nil {
			t.Fatalf("contribute: %v", err)
		}
	}
	f.now = endsAt + 1
	if _, err := f.ledger.FinalizeCampaign(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return f
}

func (f *fixture) create(t *testing.T, value int64) uint64 {
	t.Helper()
	key, err := f.workflow.CreateSpendingRequest(manager, "supplies", payee, big.NewInt(value))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return key
}

func (f *fixture) accept(t *testing.T, reviewer [20]byte, key uint64) {
	t.Helper()
	if err := f.workflow.AcceptSpendingRequest(reviewer, key); err != nil {
		t.Fatalf("accept: %v", err)
	}
}

func (f *fixture) request(t *testing.T, key uint64) *Request {
	t.Helper()
	req, err := f.workflow.Request(key)
	if err != nil {
		t.Fatalf("load request: %v", err)
	}
	return req
}

func TestCreateSpendingRequest(t *testing.T) {
	f := newFixture(t, 2, 100)
	first := f.create(t, 40)
	second := f.create(t, 100)
	if first != 0 || second != 1 {
		t.Fatalf("expected keys 0 and 1, got %d and %d", first, second)
	}
	req := f.request(t, first)
	if req.Status != StatusPending || req.ApprovalsCount != 0 || req.RejectionsCount != 0 {
		t.Fatalf("unexpected new request %+v", req)
	}
	if req.Recipient != payee || req.Value.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("unexpected request fields %+v", req)
	}
	pending, _ := f.ledger.PendingBalance()
	if pending.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("creation must not debit the pending balance, got %s", pending)
	}
	evt := f.emitter.last(t)
	if evt.Key != second || evt.Status != "PENDING" || evt.Value.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected snapshot %+v", evt)
	}
	summary, _ := f.ledger.Summary()
	if summary.Counters.SpendingRequestsCount != 2 {
		t.Fatalf("expected request count 2, got %d", summary.Counters.SpendingRequestsCount)
	}
}

func TestCreateSpendingRequestPreconditions(t *testing.T) {
	f := newFixture(t, 2, 100)

	if _, err := f.workflow.CreateSpendingRequest(outsider, "x", payee, big.NewInt(1)); !errors.Is(err, ErrNotManager) {
		t.Fatalf("expected ErrNotManager, got %v", err)
	}
	if _, err := f.workflow.CreateSpendingRequest(reviewerA, "x", payee, big.NewInt(1)); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("reviewers cannot create requests, got %v", err)
	}
	_, err := f.workflow.CreateSpendingRequest(manager, "x", [20]byte{}, big.NewInt(1))
	if !errors.Is(err, ErrZeroRecipient) || !errors.Is(err, coreerrors.ErrInvalidRecipient) {
		t.Fatalf("expected invalid recipient, got %v", err)
	}
	if _, err := f.workflow.CreateSpendingRequest(manager, "x", payee, big.NewInt(101)); !errors.Is(err, coreerrors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, err := f.workflow.CreateSpendingRequest(manager, "x", payee, big.NewInt(-1)); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}

	f.now = endsAt
	if _, err := f.workflow.CreateSpendingRequest(manager, "x", payee, big.NewInt(1)); !errors.Is(err, coreerrors.ErrTimingViolation) {
		t.Fatalf("expected timing violation before the end, got %v", err)
	}
	if len(f.state.requests) != 0 {
		t.Fatalf("rejected creations must not store requests")
	}
}

func TestAcceptReachesQuorum(t *testing.T) {
	f := newFixture(t, 2, 100)
	key := f.create(t, 30)

	f.accept(t, reviewerA, key)
	req := f.request(t, key)
	if req.Status != StatusPending || req.ApprovalsCount != 1 {
		t.Fatalf("one approval must not approve, got %+v", req)
	}
	pending, _ := f.ledger.PendingBalance()
	if pending.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("pending must only move at quorum, got %s", pending)
	}

	f.accept(t, reviewerB, key)
	req = f.request(t, key)
	if req.Status != StatusApproved || req.ApprovalsCount != 2 {
		t.Fatalf("expected approval, got %+v", req)
	}
	pending, _ = f.ledger.PendingBalance()
	if pending.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("expected pending 70, got %s", pending)
	}
	if evt := f.emitter.last(t); evt.Status != "APPROVED" || evt.ApprovalsCount != 2 || evt.Actor != reviewerB {
		t.Fatalf("unexpected snapshot %+v", evt)
	}

	if err := f.workflow.AcceptSpendingRequest(reviewerC, key); !errors.Is(err, ErrRequestNotPending) {
		t.Fatalf("votes after approval must fail, got %v", err)
	}
}

func TestCompetingRequestsCannotOverdrawPending(t *testing.T) {
	f := newFixture(t, 2, 100)
	r1 := f.create(t, 60)
	r2 := f.create(t, 60)

	f.accept(t, reviewerA, r2)
	f.accept(t, reviewerA, r1)
	f.accept(t, reviewerB, r1)

	err := f.workflow.AcceptSpendingRequest(reviewerB, r2)
	if !errors.Is(err, campaign.ErrInsufficientPending) || !errors.Is(err, coreerrors.ErrInsufficientFunds) {
		t.Fatalf("expected quorum-crossing vote on R2 to fail, got %v", err)
	}
	req := f.request(t, r2)
	if req.Status != StatusPending || req.ApprovalsCount != 1 || req.HasVoted(reviewerB) {
		t.Fatalf("failed vote must leave R2 untouched, got %+v", req)
	}
	pending, _ := f.ledger.PendingBalance()
	if pending.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected pending 40, got %s", pending)
	}

	// Re-finalizing must not hand R1's reservation back to R2.
	if _, err := f.ledger.FinalizeCampaign(); err != nil {
		t.Fatalf("refinalize: %v", err)
	}
	if err := f.workflow.AcceptSpendingRequest(reviewerB, r2); !errors.Is(err, campaign.ErrInsufficientPending) {
		t.Fatalf("expected R2 to stay blocked after refinalize, got %v", err)
	}
}

func TestMixedVotesStayPending(t *testing.T) {
	f := newFixture(t, 2, 100)
	key := f.create(t, 50)

	if err := f.workflow.RejectSpendingRequest(reviewerA, key); err != nil {
		t.Fatalf("reject: %v", err)
	}
	f.accept(t, reviewerB, key)

	req := f.request(t, key)
	if req.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", req.Status)
	}
	if req.ApprovalsCount != 1 || req.RejectionsCount != 1 {
		t.Fatalf("unexpected counts %+v", req)
	}
	if len(f.emitter.events) != 3 {
		t.Fatalf("expected a snapshot per call, got %d", len(f.emitter.events))
	}
}

func TestRejectReachesQuorum(t *testing.T) {
	f := newFixture(t, 2, 100)
	key := f.create(t, 50)
	for _, reviewer := range [][20]byte{reviewerA, reviewerB} {
		if err := f.workflow.RejectSpendingRequest(reviewer, key); err != nil {
			t.Fatalf("reject: %v", err)
		}
	}
	if req := f.request(t, key); req.Status != StatusRejected {
		t.Fatalf("expected REJECTED, got %s", req.Status)
	}
	pending, _ := f.ledger.PendingBalance()
	if pending.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("rejection must not touch pending, got %s", pending)
	}
	if err := f.workflow.CompleteSpendingRequest(manager, key); !errors.Is(err, ErrRequestNotApproved) {
		t.Fatalf("rejected request cannot complete, got %v", err)
	}
}

func TestReviewerVotesOncePerRequest(t *testing.T) {
	f := newFixture(t, 3, 100)
	key := f.create(t, 10)
	f.accept(t, reviewerA, key)

	if err := f.workflow.AcceptSpendingRequest(reviewerA, key); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	err := f.workflow.RejectSpendingRequest(reviewerA, key)
	if !errors.Is(err, ErrAlreadyVoted) || !errors.Is(err, coreerrors.ErrStateConflict) {
		t.Fatalf("switching a vote must fail, got %v", err)
	}
	req := f.request(t, key)
	if req.ApprovalsCount != 1 || req.RejectionsCount != 0 {
		t.Fatalf("unexpected counts %+v", req)
	}
	voted, err := f.workflow.HasVoted(key, reviewerA)
	if err != nil || !voted {
		t.Fatalf("expected reviewerA to be recorded, got %v %v", voted, err)
	}
	voted, _ = f.workflow.HasVoted(key, reviewerB)
	if voted {
		t.Fatalf("reviewerB has not voted")
	}
}

func TestVotingRequiresReviewer(t *testing.T) {
	f := newFixture(t, 2, 100)
	key := f.create(t, 10)
	if err := f.workflow.AcceptSpendingRequest(manager, key); !errors.Is(err, ErrNotReviewer) {
		t.Fatalf("expected ErrNotReviewer, got %v", err)
	}
	if err := f.workflow.RejectSpendingRequest(outsider, key); !errors.Is(err, ErrNotReviewer) {
		t.Fatalf("expected ErrNotReviewer, got %v", err)
	}
	if err := f.workflow.AcceptSpendingRequest(reviewerA, 42); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestCompleteSpendingRequest(t *testing.T) {
	f := newFixture(t, 2, 100)
	key := f.create(t, 60)
	f.accept(t, reviewerA, key)
	f.accept(t, reviewerB, key)

	if err := f.workflow.CompleteSpendingRequest(reviewerA, key); !errors.Is(err, ErrNotManager) {
		t.Fatalf("expected ErrNotManager, got %v", err)
	}
	if err := f.workflow.CompleteSpendingRequest(manager, key); err != nil {
		t.Fatalf("complete: %v", err)
	}
	summary, _ := f.ledger.Summary()
	if summary.Counters.Spent.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected spent 60, got %s", summary.Counters.Spent)
	}
	if summary.Counters.Held.Cmp(big.NewInt(40)) != 0 || summary.Counters.Reserved.Sign() != 0 {
		t.Fatalf("unexpected counters %+v", summary.Counters)
	}
	if got := f.credits[payee]; got == nil || got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected recipient credit 60, got %v", got)
	}
	if evt := f.emitter.last(t); evt.Status != "COMPLETED" {
		t.Fatalf("expected COMPLETED snapshot, got %+v", evt)
	}

	err := f.workflow.CompleteSpendingRequest(manager, key)
	if !errors.Is(err, ErrRequestNotApproved) {
		t.Fatalf("second completion must fail, got %v", err)
	}
	summary, _ = f.ledger.Summary()
	if summary.Counters.Spent.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("spent must not change on a failed completion, got %s", summary.Counters.Spent)
	}
}

func TestCompleteRejectsReentrantCalls(t *testing.T) {
	f := newFixture(t, 1, 100)
	first := f.create(t, 30)
	second := f.create(t, 30)
	f.accept(t, reviewerA, first)
	f.accept(t, reviewerA, second)

	var nestedComplete, nestedRefund error
	var observed Status
	f.onCredit = func() {
		f.onCredit = nil
		observed = f.request(t, first).Status
		nestedComplete = f.workflow.CompleteSpendingRequest(manager, second)
		_, nestedRefund = f.ledger.Refund(addr(0xC0))
	}
	if err := f.workflow.CompleteSpendingRequest(manager, first); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if observed != StatusCompleted {
		t.Fatalf("status must be written before the credit, saw %s", observed)
	}
	if !errors.Is(nestedComplete, nativecommon.ErrReentrantCall) {
		t.Fatalf("expected nested completion to be rejected, got %v", nestedComplete)
	}
	if !errors.Is(nestedRefund, nativecommon.ErrReentrantCall) {
		t.Fatalf("expected nested refund to be rejected, got %v", nestedRefund)
	}
	if req := f.request(t, second); req.Status != StatusApproved {
		t.Fatalf("nested completion must not apply, got %s", req.Status)
	}
	if err := f.workflow.CompleteSpendingRequest(manager, second); err != nil {
		t.Fatalf("guard must be released after completion: %v", err)
	}
}

func TestRequestsListsInKeyOrder(t *testing.T) {
	f := newFixture(t, 2, 100)
	for i := 0; i < 3; i++ {
		f.create(t, int64(10*(i+1)))
	}
	reqs, err := f.workflow.Requests()
	if err != nil {
		t.Fatalf("requests: %v", err)
	}
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(reqs))
	}
	for i, req := range reqs {
		if req.Key != uint64(i) {
			t.Fatalf("expected key %d at %d, got %d", i, i, req.Key)
		}
	}
}

func TestPausedWorkflow(t *testing.T) {
	f := newFixture(t, 2, 100)
	key := f.create(t, 10)
	f.workflow.SetPauses(nativecommon.StaticPauses{nativecommon.ModuleSpending: true})
	if err := f.workflow.AcceptSpendingRequest(reviewerA, key); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if _, err := f.workflow.Request(key); err != nil {
		t.Fatalf("queries must not be paused: %v", err)
	}
}

func TestStatusLabels(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusRejected, StatusApproved, StatusCompleted} {
		parsed, ok := ParseStatus(status.String())
		if !ok || parsed != status {
			t.Fatalf("status %s did not round trip", status)
		}
	}
	if _, ok := ParseStatus("VOIDED"); ok {
		t.Fatalf("unknown label must not parse")
	}
}
