package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/duelpit/duelpit/internal/repos/accounts"
	"github.com/duelpit/duelpit/internal/repos/matches"
	"github.com/duelpit/duelpit/internal/repos/wagers"
	"github.com/duelpit/duelpit/internal/services/match"
	"github.com/duelpit/duelpit/internal/services/registry"
	"github.com/duelpit/duelpit/internal/services/settlement"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, `{"error":"internal json encode failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]string{"error": kind, "reason": msg})
}

// writeDomainError maps service errors onto the wire taxonomy: stable kind
// plus human-readable reason. Anything unmapped is an internal error and is
// logged loudly; invariant violations in particular must never pass silently.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	// Validation.
	case errors.Is(err, registry.ErrInvalidStake):
		writeError(w, http.StatusBadRequest, "InvalidStake", "stake must be positive")
	case errors.Is(err, registry.ErrInvalidMap):
		writeError(w, http.StatusBadRequest, "InvalidMap", "map and mode must be set")
	case errors.Is(err, settlement.ErrMissingReason):
		writeError(w, http.StatusBadRequest, "MissingReason", "administrative actions require a reason")
	case errors.Is(err, match.ErrUnknownPick):
		writeError(w, http.StatusBadRequest, "UnknownPick", "candidate is not in the pool")

	// Permissions.
	case errors.Is(err, registry.ErrForbidden),
		errors.Is(err, settlement.ErrForbidden),
		errors.Is(err, match.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden", "caller lacks the required capability")
	case errors.Is(err, match.ErrNotParticipant),
		errors.Is(err, settlement.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "NotParticipant", "caller is not a participant")

	// Not found.
	case errors.Is(err, wagers.ErrWagerNotFound):
		writeError(w, http.StatusNotFound, "WagerNotFound", "wager not found")
	case errors.Is(err, matches.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, "MatchNotFound", "match not found")
	case errors.Is(err, accounts.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "AccountNotFound", "account not found")

	// Funds.
	case errors.Is(err, accounts.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "InsufficientFunds", "insufficient available balance")

	// Concurrency conflicts; the caller may retry with fresh state.
	case errors.Is(err, registry.ErrAlreadyMatched):
		writeError(w, http.StatusConflict, "AlreadyMatched", "wager already matched")
	case errors.Is(err, registry.ErrWagerExpired):
		writeError(w, http.StatusConflict, "WagerExpired", "wager offer has expired")
	case errors.Is(err, registry.ErrSelfAccept):
		writeError(w, http.StatusConflict, "SelfAccept", "cannot accept your own wager")
	case errors.Is(err, registry.ErrNotCancellable):
		writeError(w, http.StatusConflict, "NotCancellable", "wager can no longer be cancelled")
	case errors.Is(err, match.ErrNotYourTurn):
		writeError(w, http.StatusConflict, "NotYourTurn", "not your turn to ban")
	case errors.Is(err, match.ErrAlreadyBanned):
		writeError(w, http.StatusConflict, "AlreadyBanned", "candidate already banned")
	case errors.Is(err, match.ErrWrongPhase):
		writeError(w, http.StatusConflict, "WrongPhase", "match is not in a veto phase")
	case errors.Is(err, match.ErrWagerClosed):
		writeError(w, http.StatusConflict, "WagerClosed", "owning wager is no longer active")
	case errors.Is(err, settlement.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "AlreadyResolved", "wager already resolved")
	case errors.Is(err, settlement.ErrNotResolvable):
		writeError(w, http.StatusConflict, "NotResolvable", "wager is not in a resolvable state")

	// Invariant violations are programming-error-class faults.
	case errors.Is(err, accounts.ErrInvariantViolation):
		slog.Error("balance invariant violation", "error", err)
		writeError(w, http.StatusInternalServerError, "InvariantViolation", "internal error")

	default:
		slog.Error("unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal", "internal error")
	}
}
