package metrics

import (
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// CampaignMetrics tracks ledger and spending activity across all campaign
// instances served by the node.
type CampaignMetrics struct {
	contributions      *prometheus.CounterVec
	contributionAmount *prometheus.CounterVec
	refunds            *prometheus.CounterVec
	refundAmount       *prometheus.CounterVec
	votes              *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	rejected           *prometheus.CounterVec
	pendingBalance     *prometheus.GaugeVec
	published          *prometheus.CounterVec
}

var (
	campaignOnce     sync.Once
	campaignRegistry *CampaignMetrics
)

// Campaign returns the process-wide campaign metrics, registering them with
// the default Prometheus registry on first use.
func Campaign() *CampaignMetrics {
	campaignOnce.Do(func() {
		campaignRegistry = &CampaignMetrics{
			contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "campaign_contributions_total",
				Help: "Count of accepted contributions by campaign.",
			}, []string{"campaign"}),
			contributionAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "campaign_contribution_amount_total",
				Help: "Sum of accepted contribution amounts by campaign.",
			}, []string{"campaign"}),
			refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "campaign_refunds_total",
				Help: "Count of refunds queued by campaign.",
			}, []string{"campaign"}),
			refundAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "campaign_refund_amount_total",
				Help: "Sum of refunded amounts by campaign.",
			}, []string{"campaign"}),
			votes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "campaign_spending_votes_total",
				Help: "Count of reviewer votes by choice.",
			}, []string{"campaign", "choice"}),
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "campaign_spending_requests_total",
				Help: "Count of spending request snapshots by resulting status.",
			}, []string{"campaign", "status"}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "campaign_operations_rejected_total",
				Help: "Count of rejected operations by operation and error class.",
			}, []string{"operation", "class"}),
			pendingBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "campaign_pending_balance",
				Help: "Live pending balance available to spending requests.",
			}, []string{"campaign"}),
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "campaign_records_published_total",
				Help: "Committed records handed to downstream emitters, by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			campaignRegistry.contributions,
			campaignRegistry.contributionAmount,
			campaignRegistry.refunds,
			campaignRegistry.refundAmount,
			campaignRegistry.votes,
			campaignRegistry.transitions,
			campaignRegistry.rejected,
			campaignRegistry.pendingBalance,
			campaignRegistry.published,
		)
	})
	return campaignRegistry
}

func (m *CampaignMetrics) ObserveContribution(campaign string, amount *big.Int) {
	if m == nil {
		return
	}
	m.contributions.WithLabelValues(label(campaign)).Inc()
	m.contributionAmount.WithLabelValues(label(campaign)).Add(bigToFloat(amount))
}

func (m *CampaignMetrics) ObserveRefund(campaign string, amount *big.Int) {
	if m == nil {
		return
	}
	m.refunds.WithLabelValues(label(campaign)).Inc()
	m.refundAmount.WithLabelValues(label(campaign)).Add(bigToFloat(amount))
}

func (m *CampaignMetrics) ObserveVote(campaign, choice string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(label(campaign), label(choice)).Inc()
}

func (m *CampaignMetrics) ObserveRequestState(campaign, status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(label(campaign), label(status)).Inc()
}

// ObserveRejected counts an operation that failed and was rolled back.
func (m *CampaignMetrics) ObserveRejected(operation, class string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(label(operation), label(class)).Inc()
}

func (m *CampaignMetrics) SetPendingBalance(campaign string, pending *big.Int) {
	if m == nil {
		return
	}
	m.pendingBalance.WithLabelValues(label(campaign)).Set(bigToFloat(pending))
}

// ObservePublished counts a committed record of eventType.
func (m *CampaignMetrics) ObservePublished(eventType string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(label(strings.ToLower(strings.TrimSpace(eventType)))).Inc()
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
