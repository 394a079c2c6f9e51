package api

import (
	"net/http"
)

// Account reads are self-service: callers see their own balance and history,
// never anyone else's. Admin views of the full ledger live under /admin.

func (p *handlerProvider) getBalance(w http.ResponseWriter, r *http.Request) {
	caller := identityFrom(r.Context())

	b, err := p.ledger.Balance(r.Context(), caller.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewBalance(b))
}

func (p *handlerProvider) getHistory(w http.ResponseWriter, r *http.Request) {
	caller := identityFrom(r.Context())

	entries, err := p.ledger.History(r.Context(), caller.AccountID, listLimit(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewEntries(entries))
}
