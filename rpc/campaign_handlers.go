package rpc

import (
	"net/http"
	"strings"

	"crowdfund/core"
	"crowdfund/core/types"
	"crowdfund/crypto"
)

const maxEventsPerCall = 500

// instance resolves the campaign named in params, writing the error response
// when it cannot.
func (s *Server) instance(w http.ResponseWriter, r *http.Request, req *RPCRequest, label string) (*core.Instance, bool) {
	addr, err := crypto.ParsePrincipal(crypto.CampaignPrefix, strings.TrimSpace(label))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid campaign", err.Error())
		return nil, false
	}
	inst, err := s.node.Campaign(addr)
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return nil, false
	}
	return inst, true
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request, req *RPCRequest, caller [20]byte) {
	var params CreateCampaignParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	cp, err := params.toParams()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := s.node.CreateCampaign(caller, cp)
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, CreateCampaignResult{Campaign: crypto.Format(crypto.CampaignPrefix, addr)})
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request, req *RPCRequest, _ [20]byte) {
	list, err := s.node.Campaigns()
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	out := make([]string, 0, len(list))
	for _, addr := range list {
		out = append(out, crypto.Format(crypto.CampaignPrefix, addr))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleCampaignSummary(w http.ResponseWriter, r *http.Request, req *RPCRequest, _ [20]byte) {
	var params CampaignParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	inst, ok := s.instance(w, r, req, params.Campaign)
	if !ok {
		return
	}
	summary, err := inst.Summary()
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, newSummaryResult(inst.String(), summary))
}

func (s *Server) handleBalanceOf(w http.ResponseWriter, r *http.Request, req *RPCRequest, _ [20]byte) {
	var params AddressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	who, err := parsePrincipal("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	inst, ok := s.instance(w, r, req, params.Campaign)
	if !ok {
		return
	}
	balance, err := inst.BalanceOf(who)
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, AmountResult{Address: crypto.Format(crypto.PrincipalPrefix, who), Amount: amountString(balance)})
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request, req *RPCRequest, caller [20]byte) {
	var params ContributeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	value := amount
	if strings.TrimSpace(params.Value) != "" {
		value, err = parseAmount("value", params.Value)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
	}
	inst, ok := s.instance(w, r, req, params.Campaign)
	if !ok {
		return
	}
	if err := inst.Contribute(caller, amount, value); err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	balance, err := inst.BalanceOf(caller)
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, AmountResult{Address: crypto.Format(crypto.PrincipalPrefix, caller), Amount: amountString(balance)})
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request, req *RPCRequest, caller [20]byte) {
	var params CampaignParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	inst, ok := s.instance(w, r, req, params.Campaign)
	if !ok {
		return
	}
	amount, err := inst.Refund(caller)
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, AmountResult{Address: crypto.Format(crypto.PrincipalPrefix, caller), Amount: amountString(amount)})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request, req *RPCRequest, _ [20]byte) {
	var params CampaignParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	inst, ok := s.instance(w, r, req, params.Campaign)
	if !ok {
		return
	}
	if _, err := inst.Finalize(); err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	summary, err := inst.Summary()
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, newSummaryResult(inst.String(), summary))
}

// handleEvents returns committed records of one campaign, or of the registry
// when no campaign is named.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest, _ [20]byte) {
	var params EventsParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
	}
	if params.Limit < 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "limit must not be negative", nil)
		return
	}
	if params.Limit == 0 || params.Limit > maxEventsPerCall {
		params.Limit = maxEventsPerCall
	}
	var (
		out []*types.Event
		err error
	)
	if strings.TrimSpace(params.Campaign) == "" {
		out, err = s.node.RegistryEvents(params.From, params.Limit)
	} else {
		inst, ok := s.instance(w, r, req, params.Campaign)
		if !ok {
			return
		}
		out, err = inst.Events(params.From, params.Limit)
	}
	if err != nil {
		s.writeEngineError(w, r, req.ID, err)
		return
	}
	if out == nil {
		out = []*types.Event{}
	}
	writeResult(w, req.ID, out)
}
