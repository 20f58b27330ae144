package main

import (
	"fmt"
	"log/slog"

	"crowdfund/config"
	"crowdfund/core"
	"crowdfund/crypto"
)

// bootstrap deploys the configured campaigns into an empty registry. Once any
// campaign exists the list in the config file is ignored, so restarts never
// deploy duplicates.
func bootstrap(node *core.Node, campaigns []config.CampaignConfig, logger *slog.Logger) error {
	if len(campaigns) == 0 {
		return nil
	}
	existing, err := node.Campaigns()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("registry already populated, skipping configured campaigns",
			slog.Int("deployed", len(existing)),
			slog.Int("configured", len(campaigns)))
		return nil
	}
	for _, entry := range campaigns {
		creator, params, err := entry.Params()
		if err != nil {
			return fmt.Errorf("campaign %q: %w", entry.Name, err)
		}
		addr, err := node.CreateCampaign(creator, params)
		if err != nil {
			return fmt.Errorf("campaign %q: %w", entry.Name, err)
		}
		logger.Info("configured campaign deployed",
			slog.String("name", entry.Name),
			slog.String("campaign", crypto.Format(crypto.CampaignPrefix, addr)))
	}
	return nil
}
