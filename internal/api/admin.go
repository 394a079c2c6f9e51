package api

import (
	"encoding/json"
	"net/http"
)

type forceWinnerRequest struct {
	WinnerID int64  `json:"winnerId"`
	ApplyFee bool   `json:"applyFee"`
	Reason   string `json:"reason"`
}

func (p *handlerProvider) adminForceWinner(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerIDParam(w, r)
	if !ok {
		return
	}

	var req forceWinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", "malformed JSON body")
		return
	}

	err := p.settlement.AdminForceWinner(r.Context(), identityFrom(r.Context()), id, req.WinnerID, req.ApplyFee, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (p *handlerProvider) adminRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerIDParam(w, r)
	if !ok {
		return
	}

	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", "malformed JSON body")
		return
	}

	err := p.settlement.AdminRefund(r.Context(), identityFrom(r.Context()), id, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (p *handlerProvider) adminDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerIDParam(w, r)
	if !ok {
		return
	}

	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", "malformed JSON body")
		return
	}

	err := p.settlement.AdminMarkDisputed(r.Context(), identityFrom(r.Context()), id, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (p *handlerProvider) adminListWagers(w http.ResponseWriter, r *http.Request) {
	ws, err := p.registry.ListAll(r.Context(), identityFrom(r.Context()), listLimit(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewWagers(ws))
}

func (p *handlerProvider) adminListTransactions(w http.ResponseWriter, r *http.Request) {
	entries, err := p.settlement.ListTransactions(r.Context(), identityFrom(r.Context()), listLimit(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewEntries(entries))
}
