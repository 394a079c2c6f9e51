package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const defaultListLimit = 100

func listLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 1000 {
		return defaultListLimit
	}
	return n
}

func wagerIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "wagerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidID", "wager id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

type createWagerRequest struct {
	Stake int64  `json:"stake"`
	Map   string `json:"map"`
	Mode  string `json:"mode"`
}

func (p *handlerProvider) createWager(w http.ResponseWriter, r *http.Request) {
	var req createWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", "malformed JSON body")
		return
	}

	created, err := p.registry.Create(r.Context(), identityFrom(r.Context()), req.Stake, req.Map, req.Mode)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, viewWager(created))
}

func (p *handlerProvider) listOpenWagers(w http.ResponseWriter, r *http.Request) {
	ws, err := p.registry.ListOpen(r.Context(), listLimit(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewWagers(ws))
}

func (p *handlerProvider) getWager(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerIDParam(w, r)
	if !ok {
		return
	}

	wg, err := p.registry.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewWager(wg))
}

func (p *handlerProvider) acceptWager(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerIDParam(w, r)
	if !ok {
		return
	}

	wg, m, err := p.registry.Accept(r.Context(), identityFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wager": viewWager(wg),
		"match": viewMatch(m),
	})
}

func (p *handlerProvider) cancelWager(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerIDParam(w, r)
	if !ok {
		return
	}

	err := p.registry.Cancel(r.Context(), identityFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
