package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"crowdfund/crypto"
	"crowdfund/native/campaign"
	"crowdfund/native/spending"
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// CreateCampaignParams deploys a campaign created by the authenticated caller.
type CreateCampaignParams struct {
	StartsAt           int64    `json:"startsAt"`
	EndsAt             int64    `json:"endsAt"`
	MinFundingGoal     string   `json:"minFundingGoal"`
	MinContribution    string   `json:"minContribution"`
	MinReviewsRequired uint64   `json:"minReviewsRequired"`
	Managers           []string `json:"managers"`
	Reviewers          []string `json:"reviewers"`
}

type CreateCampaignResult struct {
	Campaign string `json:"campaign"`
}

type CampaignParams struct {
	Campaign string `json:"campaign"`
}

type AddressParams struct {
	Campaign string `json:"campaign"`
	Address  string `json:"address"`
}

// ContributeParams carries the contributed amount and the value attached to
// the call. An omitted value is taken to equal the amount.
type ContributeParams struct {
	Campaign string `json:"campaign"`
	Amount   string `json:"amount"`
	Value    string `json:"value,omitempty"`
}

type EventsParams struct {
	Campaign string `json:"campaign,omitempty"`
	From     uint64 `json:"from,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type CreateRequestParams struct {
	Campaign    string `json:"campaign"`
	Description string `json:"description"`
	Recipient   string `json:"recipient"`
	Value       string `json:"value"`
}

type RequestParams struct {
	Campaign string `json:"campaign"`
	Key      uint64 `json:"key"`
}

type CreateRequestResult struct {
	Key uint64 `json:"key"`
}

type AmountResult struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type CampaignSummaryResult struct {
	Campaign              string   `json:"campaign"`
	StartsAt              int64    `json:"startsAt"`
	EndsAt                int64    `json:"endsAt"`
	MinFundingGoal        string   `json:"minFundingGoal"`
	MinContribution       string   `json:"minContribution"`
	MinReviewsRequired    uint64   `json:"minReviewsRequired"`
	Managers              []string `json:"managers"`
	Reviewers             []string `json:"reviewers"`
	Raised                string   `json:"raised"`
	Refunded              string   `json:"refunded"`
	Spent                 string   `json:"spent"`
	PendingBalance        string   `json:"pendingBalance"`
	Held                  string   `json:"held"`
	Reserved              string   `json:"reserved"`
	ContributorsCount     uint64   `json:"contributorsCount"`
	SpendingRequestsCount uint64   `json:"spendingRequestsCount"`
}

type SpendingRequestResult struct {
	Key             uint64   `json:"key"`
	Description     string   `json:"description"`
	Recipient       string   `json:"recipient"`
	Value           string   `json:"value"`
	ApprovalsCount  uint64   `json:"approvalsCount"`
	RejectionsCount uint64   `json:"rejectionsCount"`
	Status          string   `json:"status"`
	Voters          []string `json:"voters"`
	CreatedAt       int64    `json:"createdAt"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one parameter object")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return fmt.Errorf("invalid parameter object: %w", err)
	}
	return nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s required", field)
	}
	parsed, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return parsed.ToBig(), nil
}

func parsePrincipal(field, value string) ([20]byte, error) {
	addr, err := crypto.ParsePrincipal(crypto.PrincipalPrefix, strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return addr, nil
}

func parsePrincipals(field string, values []string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(values))
	for _, value := range values {
		addr, err := parsePrincipal(field, value)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func formatPrincipals(addrs [][20]byte) []string {
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, crypto.Format(crypto.PrincipalPrefix, addr))
	}
	return out
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func (p CreateCampaignParams) toParams() (*campaign.Params, error) {
	goal, err := parseAmount("minFundingGoal", p.MinFundingGoal)
	if err != nil {
		return nil, err
	}
	minimum, err := parseAmount("minContribution", p.MinContribution)
	if err != nil {
		return nil, err
	}
	managers, err := parsePrincipals("manager", p.Managers)
	if err != nil {
		return nil, err
	}
	reviewers, err := parsePrincipals("reviewer", p.Reviewers)
	if err != nil {
		return nil, err
	}
	return &campaign.Params{
		StartsAt:           p.StartsAt,
		EndsAt:             p.EndsAt,
		MinFundingGoal:     goal,
		MinContribution:    minimum,
		MinReviewsRequired: p.MinReviewsRequired,
		Managers:           managers,
		Reviewers:          reviewers,
	}, nil
}

func newSummaryResult(label string, summary *campaign.Summary) *CampaignSummaryResult {
	params := summary.Params
	counters := summary.Counters
	return &CampaignSummaryResult{
		Campaign:              label,
		StartsAt:              params.StartsAt,
		EndsAt:                params.EndsAt,
		MinFundingGoal:        amountString(params.MinFundingGoal),
		MinContribution:       amountString(params.MinContribution),
		MinReviewsRequired:    params.MinReviewsRequired,
		Managers:              formatPrincipals(params.Managers),
		Reviewers:             formatPrincipals(params.Reviewers),
		Raised:                amountString(counters.Raised),
		Refunded:              amountString(counters.Refunded),
		Spent:                 amountString(counters.Spent),
		PendingBalance:        amountString(counters.PendingBalance),
		Held:                  amountString(counters.Held),
		Reserved:              amountString(counters.Reserved),
		ContributorsCount:     counters.ContributorsCount,
		SpendingRequestsCount: counters.SpendingRequestsCount,
	}
}

func newRequestResult(req *spending.Request) *SpendingRequestResult {
	return &SpendingRequestResult{
		Key:             req.Key,
		Description:     req.Description,
		Recipient:       crypto.Format(crypto.PrincipalPrefix, req.Recipient),
		Value:           amountString(req.Value),
		ApprovalsCount:  req.ApprovalsCount,
		RejectionsCount: req.RejectionsCount,
		Status:          req.Status.String(),
		Voters:          formatPrincipals(req.Voters),
		CreatedAt:       req.CreatedAt,
	}
}
