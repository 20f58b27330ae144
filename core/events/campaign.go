package events

import (
	"math/big"
	"strconv"

	"crowdfund/core/types"
	"crowdfund/crypto"
)

const (
	TypeContribution      = "campaign.contribution"
	TypeRefund            = "campaign.refund"
	TypeCampaignFinalized = "campaign.finalized"
)

// Contribution is recorded for every accepted contribution.
type Contribution struct {
	Contributor [20]byte
	Amount      *big.Int
	Timestamp   int64
}

func (Contribution) EventType() string { return TypeContribution }

func (e Contribution) Event() *types.Event {
	return &types.Event{
		Type: TypeContribution,
		Attributes: map[string]string{
			"contributor": crypto.Format(crypto.PrincipalPrefix, e.Contributor),
			"amount":      formatAmount(e.Amount),
			"timestamp":   intToString(e.Timestamp),
		},
	}
}

// Refund is recorded when a contributor's full balance is queued back to them.
type Refund struct {
	Contributor [20]byte
	Amount      *big.Int
	Timestamp   int64
}

func (Refund) EventType() string { return TypeRefund }

func (e Refund) Event() *types.Event {
	return &types.Event{
		Type: TypeRefund,
		Attributes: map[string]string{
			"contributor": crypto.Format(crypto.PrincipalPrefix, e.Contributor),
			"amount":      formatAmount(e.Amount),
			"timestamp":   intToString(e.Timestamp),
		},
	}
}

// CampaignFinalized captures each refresh of the pending balance.
type CampaignFinalized struct {
	PendingBalance *big.Int
	Held           *big.Int
	Timestamp      int64
}

func (CampaignFinalized) EventType() string { return TypeCampaignFinalized }

func (e CampaignFinalized) Event() *types.Event {
	return &types.Event{
		Type: TypeCampaignFinalized,
		Attributes: map[string]string{
			"pendingBalance": formatAmount(e.PendingBalance),
			"held":           formatAmount(e.Held),
			"timestamp":      intToString(e.Timestamp),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}
