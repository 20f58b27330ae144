package rpc

import (
	"net/http"

	"crowdfund/core"
	"crowdfund/crypto"
)

func (s *Server) handleSpendingCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest, caller [20]byte) {
	var params CreateRequestParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	recipient, err := parsePrincipal("recipient", params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	value, err := parseAmount("value", params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	inst, ok := s.instance(w, r, req, params.Campaign)
	if !ok {
		return
	}
	key, err := inst.CreateSpendingRequest(caller, params.Description, recipient, value)
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, CreateRequestResult{Key: key})
}

// transition applies a vote or completion to the request named in params and
// answers with the request as stored afterwards.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, req *RPCRequest, apply func(inst *core.Instance, key uint64) error) {
	var params RequestParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	inst, ok := s.instance(w, r, req, params.Campaign)
	if !ok {
		return
	}
	if err := apply(inst, params.Key); err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	stored, err := inst.Request(params.Key)
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, newRequestResult(stored))
}

func (s *Server) handleSpendingAccept(w http.ResponseWriter, r *http.Request, req *RPCRequest, caller [20]byte) {
	s.transition(w, r, req, func(inst *core.Instance, key uint64) error {
		return inst.AcceptSpendingRequest(caller, key)
	})
}

func (s *Server) handleSpendingReject(w http.ResponseWriter, r *http.Request, req *RPCRequest, caller [20]byte) {
	s.transition(w, r, req, func(inst *core.Instance, key uint64) error {
		return inst.RejectSpendingRequest(caller, key)
	})
}

func (s *Server) handleSpendingComplete(w http.ResponseWriter, r *http.Request, req *RPCRequest, caller [20]byte) {
	s.transition(w, r, req, func(inst *core.Instance, key uint64) error {
		return inst.CompleteSpendingRequest(caller, key)
	})
}

func (s *Server) handleSpendingGet(w http.ResponseWriter, r *http.Request, req *RPCRequest, _ [20]byte) {
	s.transition(w, r, req, func(*core.Instance, uint64) error { return nil })
}

func (s *Server) handleSpendingList(w http.ResponseWriter, r *http.Request, req *RPCRequest, _ [20]byte) {
	var params CampaignParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	inst, ok := s.instance(w, r, req, params.Campaign)
	if !ok {
		return
	}
	reqs, err := inst.Requests()
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	out := make([]*SpendingRequestResult, 0, len(reqs))
	for _, stored := range reqs {
		out = append(out, newRequestResult(stored))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handlePaymentsBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest, _ [20]byte) {
	var params AddressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	payee, err := parsePrincipal("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	inst, ok := s.instance(w, r, req, params.Campaign)
	if !ok {
		return
	}
	credit, err := inst.PaymentsOf(payee)
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, AmountResult{Address: crypto.Format(crypto.PrincipalPrefix, payee), Amount: amountString(credit)})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest, caller [20]byte) {
	var params CampaignParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	inst, ok := s.instance(w, r, req, params.Campaign)
	if !ok {
		return
	}
	amount, err := inst.Withdraw(caller)
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, AmountResult{Address: crypto.Format(crypto.PrincipalPrefix, caller), Amount: amountString(amount)})
}
