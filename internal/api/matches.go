package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func matchIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "matchID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidID", "match id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (p *handlerProvider) getMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := matchIDParam(w, r)
	if !ok {
		return
	}

	detail, err := p.match.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewMatchDetail(detail))
}

type banRequest struct {
	Candidate string `json:"candidate"`
}

func (p *handlerProvider) submitBan(w http.ResponseWriter, r *http.Request) {
	id, ok := matchIDParam(w, r)
	if !ok {
		return
	}

	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", "malformed JSON body")
		return
	}
	if req.Candidate == "" {
		writeError(w, http.StatusBadRequest, "InvalidBody", "candidate must be set")
		return
	}

	m, err := p.match.SubmitBan(r.Context(), identityFrom(r.Context()), id, req.Candidate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewMatch(m))
}
