package core

import (
	"fmt"
	"log/slog"
	"sync"

	coreerrors "crowdfund/core/errors"
	"crowdfund/core/events"
	"crowdfund/core/state"
	"crowdfund/core/types"
	"crowdfund/crypto"
	"crowdfund/native/campaign"
	nativecommon "crowdfund/native/common"
	"crowdfund/observability/metrics"
	"crowdfund/native/registry"
	"crowdfund/storage"
)

// ErrCampaignNotFound is returned for addresses the registry never deployed.
var ErrCampaignNotFound = fmt.Errorf("%w: campaign not found", coreerrors.ErrStateConflict)

// Node hosts the campaign registry and every deployed campaign instance on top
// of one database.
type Node struct {
	mu sync.RWMutex

	db        storage.Database
	root      *state.Manager
	registry  *registry.Registry
	buffer    *events.Buffer
	instances map[[20]byte]*Instance

	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
	logger  *slog.Logger
}

// NewNode opens a node over db. Existing campaigns are opened lazily.
func NewNode(db storage.Database) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	n := &Node{
		db:        db,
		root:      state.NewManager(db),
		registry:  registry.NewRegistry(),
		buffer:    &events.Buffer{},
		instances: make(map[[20]byte]*Instance),
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
	}
	n.registry.SetState(n.root)
	n.registry.SetEmitter(n.buffer)
	return n, nil
}

// SetLogger configures the logger used for the node and instances opened
// afterwards.
func (n *Node) SetLogger(logger *slog.Logger) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if logger == nil {
		logger = slog.Default()
	}
	n.logger = logger
}

// SetEmitter configures the downstream emitter that receives committed
// records of the registry and every instance.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	n.emitter = emitter
	for _, inst := range n.instances {
		inst.setEmitter(emitter)
	}
}

// SetPauses configures the module circuit breaker for every instance.
func (n *Node) SetPauses(p nativecommon.PauseView) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pauses = p
	for _, inst := range n.instances {
		inst.setPauses(p)
	}
}

// SetNowFunc overrides the engine clock. Primarily intended for tests.
func (n *Node) SetNowFunc(now func() int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nowFn = now
	for _, inst := range n.instances {
		inst.setNowFunc(now)
	}
}

// CreateCampaign deploys a new campaign instance and returns its address.
func (n *Node) CreateCampaign(creator [20]byte, params *campaign.Params) ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.buffer.Reset()
	addr, err := n.registry.CreateCampaign(creator, params)
	emitted := n.buffer.Drain()
	if err == nil {
		err = n.persist(emitted)
	}
	if err != nil {
		n.root.Discard()
		n.buffer.Reset()
		n.logger.Info("campaign creation rejected",
			slog.String("creator", crypto.Format(crypto.PrincipalPrefix, creator)),
			slog.String("class", coreerrors.Class(err)),
			slog.Any("error", err))
		return [20]byte{}, err
	}
	for _, evt := range emitted {
		metrics.Campaign().ObservePublished(evt.EventType())
		n.emitter.Emit(evt)
	}
	inst := n.openLocked(addr)
	n.logger.Info("campaign created",
		slog.String("campaign", inst.String()),
		slog.String("creator", crypto.Format(crypto.PrincipalPrefix, creator)))
	return addr, nil
}

func (n *Node) persist(emitted []events.Event) error {
	for _, evt := range emitted {
		payload := events.Render(evt)
		if payload == nil {
			continue
		}
		if _, err := n.root.AppendEvent(payload); err != nil {
			return err
		}
	}
	return n.root.Commit()
}

// Campaigns lists every deployed instance address in creation order.
func (n *Node) Campaigns() ([][20]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.registry.ListCampaigns()
}

// RegistryEvents returns committed registry records starting at from.
func (n *Node) RegistryEvents(from uint64, limit int) ([]*types.Event, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.root.Events(from, limit)
}

// Campaign returns the instance deployed at addr.
func (n *Node) Campaign(addr [20]byte) (*Instance, error) {
	n.mu.RLock()
	inst, ok := n.instances[addr]
	n.mu.RUnlock()
	if ok {
		return inst, nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if inst, ok := n.instances[addr]; ok {
		return inst, nil
	}
	probe := state.NewManager(n.db).CampaignScope(addr)
	if _, ok, err := probe.CampaignParamsGet(); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrCampaignNotFound
	}
	return n.openLocked(addr), nil
}

func (n *Node) openLocked(addr [20]byte) *Instance {
	if inst, ok := n.instances[addr]; ok {
		return inst
	}
	inst := newInstance(addr, state.NewManager(n.db).CampaignScope(addr), n.logger)
	inst.downstream = n.emitter
	if n.pauses != nil {
		inst.ledger.SetPauses(n.pauses)
		inst.workflow.SetPauses(n.pauses)
		inst.escrow.SetPauses(n.pauses)
	}
	if n.nowFn != nil {
		inst.ledger.SetNowFunc(n.nowFn)
	}
	n.instances[addr] = inst
	return inst
}
