package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"crowdfund/crypto"
	"crowdfund/native/campaign"
	nativecommon "crowdfund/native/common"
)

// Auth configures bearer-token authentication of mutating RPC calls.
type Auth struct {
	HMACSecret       string `toml:"HMACSecret" yaml:"HMACSecret"`
	HMACSecretEnv    string `toml:"HMACSecretEnv" yaml:"HMACSecretEnv"`
	Issuer           string `toml:"Issuer" yaml:"Issuer"`
	Audience         string `toml:"Audience" yaml:"Audience"`
	ClockSkewSeconds int64  `toml:"ClockSkewSeconds" yaml:"ClockSkewSeconds"`
}

// RateLimit bounds the request rate of a single client.
type RateLimit struct {
	RequestsPerMinute int `toml:"RequestsPerMinute" yaml:"RequestsPerMinute"`
	Burst             int `toml:"Burst" yaml:"Burst"`
}

// Pauses engages the circuit breaker of individual modules.
type Pauses struct {
	Campaign bool `toml:"Campaign" yaml:"Campaign"`
	Spending bool `toml:"Spending" yaml:"Spending"`
	Payments bool `toml:"Payments" yaml:"Payments"`
}

// View returns the pauses as a module pause view.
func (p Pauses) View() nativecommon.StaticPauses {
	return nativecommon.StaticPauses{
		nativecommon.ModuleCampaign: p.Campaign,
		nativecommon.ModuleSpending: p.Spending,
		nativecommon.ModulePayments: p.Payments,
	}
}

// CampaignConfig describes a campaign deployed on first start. Amounts are
// decimal strings and principals bech32 addresses.
type CampaignConfig struct {
	Name               string   `toml:"Name" yaml:"Name"`
	Creator            string   `toml:"Creator" yaml:"Creator"`
	StartsAt           int64    `toml:"StartsAt" yaml:"StartsAt"`
	EndsAt             int64    `toml:"EndsAt" yaml:"EndsAt"`
	MinFundingGoal     string   `toml:"MinFundingGoal" yaml:"MinFundingGoal"`
	MinContribution    string   `toml:"MinContribution" yaml:"MinContribution"`
	MinReviewsRequired uint64   `toml:"MinReviewsRequired" yaml:"MinReviewsRequired"`
	Managers           []string `toml:"Managers" yaml:"Managers"`
	Reviewers          []string `toml:"Reviewers" yaml:"Reviewers"`
}

// Params parses the configured values into the creator address and campaign params.
func (s CampaignConfig) Params() ([20]byte, *campaign.Params, error) {
	creator, err := crypto.ParsePrincipal(crypto.PrincipalPrefix, strings.TrimSpace(s.Creator))
	if err != nil {
		return creator, nil, fmt.Errorf("creator: %w", err)
	}
	goal, err := parseUintAmount(s.MinFundingGoal)
	if err != nil {
		return creator, nil, fmt.Errorf("MinFundingGoal: %w", err)
	}
	minContribution, err := parseUintAmount(s.MinContribution)
	if err != nil {
		return creator, nil, fmt.Errorf("MinContribution: %w", err)
	}
	managers, err := parsePrincipals(s.Managers)
	if err != nil {
		return creator, nil, fmt.Errorf("Managers: %w", err)
	}
	reviewers, err := parsePrincipals(s.Reviewers)
	if err != nil {
		return creator, nil, fmt.Errorf("Reviewers: %w", err)
	}
	return creator, &campaign.Params{
		StartsAt:           s.StartsAt,
		EndsAt:             s.EndsAt,
		MinFundingGoal:     goal,
		MinContribution:    minContribution,
		MinReviewsRequired: s.MinReviewsRequired,
		Managers:           managers,
		Reviewers:          reviewers,
	}, nil
}

func parsePrincipals(values []string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(values))
	for _, value := range values {
		addr, err := crypto.ParsePrincipal(crypto.PrincipalPrefix, strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", value, err)
		}
		out = append(out, addr)
	}
	return out, nil
}

func parseUintAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	parsed, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return parsed.ToBig(), nil
}
