package state

import (
	"encoding/binary"
)

var (
	campaignScopePrefix     = []byte("campaign/")
	campaignParamsKey       = []byte("campaign/params")
	campaignCountersKey     = []byte("campaign/counters")
	campaignContribPrefix   = []byte("campaign/contribution/")
	spendingRequestPrefix   = []byte("spending/request/")
	rolePrefix              = []byte("roles/")
	paymentCreditPrefix     = []byte("payments/credit/")
	eventCountKey           = []byte("events/count")
	eventPrefix             = []byte("events/record/")
	registryNoncePrefix     = []byte("registry/nonce/")
	registryCampaignListKey = []byte("registry/campaigns")
)

// CampaignScopeKey returns the namespace holding the state of the campaign
// instance at addr.
func CampaignScopeKey(addr [20]byte) []byte {
	return join(campaignScopePrefix, addr[:])
}

func contributionKey(addr [20]byte) []byte {
	return join(campaignContribPrefix, addr[:])
}

func spendingRequestKey(key uint64) []byte {
	return join(spendingRequestPrefix, uint64Bytes(key))
}

func roleKey(role string) []byte {
	return join(rolePrefix, []byte(role))
}

func paymentCreditKey(addr [20]byte) []byte {
	return join(paymentCreditPrefix, addr[:])
}

func eventKey(seq uint64) []byte {
	return join(eventPrefix, uint64Bytes(seq))
}

func registryNonceKey(creator [20]byte) []byte {
	return join(registryNoncePrefix, creator[:])
}

func join(prefix, suffix []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(suffix))
	out = append(out, prefix...)
	return append(out, suffix...)
}

func uint64Bytes(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}
