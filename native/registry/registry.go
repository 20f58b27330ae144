package registry

import (
	"encoding/binary"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	coreerrors "crowdfund/core/errors"
	"crowdfund/core/events"
	"crowdfund/native/campaign"
)

var (
	errNilState = errors.New("registry: state not configured")

	ErrInvalidCreator = fmt.Errorf("%w: creator must not be the zero address", coreerrors.ErrUnauthorized)
	ErrInvalidParams  = fmt.Errorf("%w: invalid campaign params", coreerrors.ErrValueMismatch)
)

type registryState interface {
	RegistryNonce(creator [20]byte) (uint64, error)
	SetRegistryNonce(creator [20]byte, nonce uint64) error
	RegistryAppend(addr [20]byte) (uint64, error)
	RegistryCampaigns() ([][20]byte, error)
	InitCampaign(addr [20]byte, params *campaign.Params) error
}

// Registry deploys campaign instances and keeps the list of deployed
// addresses.
type Registry struct {
	state   registryState
	emitter events.Emitter
}

// NewRegistry returns a registry with a no-op emitter.
func NewRegistry() *Registry {
	return &Registry{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// DeriveAddress computes the instance address deployed by creator at nonce:
// the last 20 bytes of keccak256(creator || nonce).
func DeriveAddress(creator [20]byte, nonce uint64) [20]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	hash := ethcrypto.Keccak256(creator[:], buf[:])
	var out [20]byte
	copy(out[:], hash[12:])
	return out
}

// CreateCampaign validates params, initialises a new instance and appends it
// to the campaign list.
func (r *Registry) CreateCampaign(creator [20]byte, params *campaign.Params) ([20]byte, error) {
	var zero [20]byte
	if r == nil || r.state == nil {
		return zero, errNilState
	}
	if creator == zero {
		return zero, ErrInvalidCreator
	}
	if err := params.Validate(); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	nonce, err := r.state.RegistryNonce(creator)
	if err != nil {
		return zero, err
	}
	addr := DeriveAddress(creator, nonce)
	if err := r.state.InitCampaign(addr, params.Clone()); err != nil {
		return zero, err
	}
	if err := r.state.SetRegistryNonce(creator, nonce+1); err != nil {
		return zero, err
	}
	index, err := r.state.RegistryAppend(addr)
	if err != nil {
		return zero, err
	}
	r.emitter.Emit(events.CampaignCreated{
		Campaign: addr,
		Creator:  creator,
		Index:    index,
		StartsAt: params.StartsAt,
		EndsAt:   params.EndsAt,
	})
	return addr, nil
}

// ListCampaigns returns every deployed instance in creation order.
func (r *Registry) ListCampaigns() ([][20]byte, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	return r.state.RegistryCampaigns()
}
