package events

import (
	"strconv"

	"crowdfund/core/types"
	"crowdfund/crypto"
)

// TypeCampaignCreated is emitted by the registry when a new campaign instance
// is deployed.
const TypeCampaignCreated = "registry.campaign.created"

// CampaignCreated announces a new campaign instance and its creator.
type CampaignCreated struct {
	Campaign [20]byte
	Creator  [20]byte
	Index    uint64
	StartsAt int64
	EndsAt   int64
}

// EventType satisfies the events.Event interface.
func (CampaignCreated) EventType() string { return TypeCampaignCreated }

// Event converts the structured payload into a wire-friendly representation.
func (e CampaignCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeCampaignCreated,
		Attributes: map[string]string{
			"campaign": crypto.Format(crypto.CampaignPrefix, e.Campaign),
			"creator":  crypto.Format(crypto.PrincipalPrefix, e.Creator),
			"index":    strconv.FormatUint(e.Index, 10),
			"startsAt": intToString(e.StartsAt),
			"endsAt":   intToString(e.EndsAt),
		},
	}
}
