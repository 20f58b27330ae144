package state

import (
	"fmt"

	"crowdfund/native/campaign"
)

// CampaignScope returns the manager namespaced to the campaign instance at
// addr. It shares the pending writes of m.
func (m *Manager) CampaignScope(addr [20]byte) *Manager {
	return m.Scope(CampaignScopeKey(addr))
}

// RegistryNonce returns the number of campaigns creator has deployed.
func (m *Manager) RegistryNonce(creator [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := m.KVGet(registryNonceKey(creator), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// SetRegistryNonce stores the deployment nonce of creator.
func (m *Manager) SetRegistryNonce(creator [20]byte, nonce uint64) error {
	return m.KVPut(registryNonceKey(creator), nonce)
}

// RegistryCampaigns lists every deployed campaign in creation order.
func (m *Manager) RegistryCampaigns() ([][20]byte, error) {
	var list [][20]byte
	if _, err := m.KVGet(registryCampaignListKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// RegistryAppend adds addr to the campaign list and returns its index.
func (m *Manager) RegistryAppend(addr [20]byte) (uint64, error) {
	list, err := m.RegistryCampaigns()
	if err != nil {
		return 0, err
	}
	for _, existing := range list {
		if existing == addr {
			return 0, fmt.Errorf("state: campaign %x already registered", addr)
		}
	}
	list = append(list, addr)
	if err := m.KVPut(registryCampaignListKey, list); err != nil {
		return 0, err
	}
	return uint64(len(list) - 1), nil
}

// InitCampaign writes the params, zeroed counters and role assignments of a
// new campaign instance at addr.
func (m *Manager) InitCampaign(addr [20]byte, params *campaign.Params) error {
	if params == nil {
		return fmt.Errorf("state: nil campaign params")
	}
	scope := m.CampaignScope(addr)
	if _, ok, err := scope.CampaignParamsGet(); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("state: campaign %x already initialised", addr)
	}
	if err := scope.CampaignParamsPut(params); err != nil {
		return err
	}
	if err := scope.CampaignCountersPut(campaign.NewCounters()); err != nil {
		return err
	}
	for _, member := range params.Managers {
		if err := scope.SetRole(campaign.RoleManager, member[:]); err != nil {
			return err
		}
	}
	for _, member := range params.Reviewers {
		if err := scope.SetRole(campaign.RoleReviewer, member[:]); err != nil {
			return err
		}
	}
	return nil
}
