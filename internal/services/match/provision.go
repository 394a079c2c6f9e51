package match

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duelpit/duelpit/internal/infra/pgutils"
	"github.com/duelpit/duelpit/internal/notify"
	"github.com/duelpit/duelpit/internal/repos/matches"
	"github.com/duelpit/duelpit/internal/repos/wagers"
)

const workerBatchSize = 20

// ProvisionTick requests servers for matches that finished their veto. It
// runs off the request path; CONFIGURING is a stable state the match sits
// in while waiting. The provision_claimed CAS makes the gateway call
// single-flight even when ticks overlap, and the claim is a lease: one
// left behind by a crashed worker expires and gets picked up again.
func (s *Service) ProvisionTick(ctx context.Context) error {
	now := time.Now().UTC()
	staleBefore := now.Add(-s.claimTTL())

	pending, err := s.matches.ListConfiguring(ctx, staleBefore, workerBatchSize)
	if err != nil {
		return fmt.Errorf("list configuring matches: %w", err)
	}

	for i := range pending {
		s.provisionOne(ctx, &pending[i], now, staleBefore)
	}

	return nil
}

func (s *Service) claimTTL() time.Duration {
	if s.cfg.ProvisionClaimTTL > 0 {
		return s.cfg.ProvisionClaimTTL
	}
	return defaultProvisionClaimTTL
}

func (s *Service) provisionOne(ctx context.Context, m *matches.Match, now, staleBefore time.Time) {
	claimed, err := s.matches.ClaimProvisioning(ctx, m.ID, now, staleBefore)
	if err != nil {
		slog.Error("claim provisioning", "matchId", m.ID, "error", err)
		return
	}
	if !claimed {
		return // someone else is on it
	}

	// Every exit below either commits the endpoint or goes through
	// provisionFailed; a held claim with no outcome would strand the match
	// until the lease expired.
	if m.SelectedLocation == nil || m.SelectedMap == nil {
		s.provisionFailed(ctx, m, errors.New("configuring match without selections"))
		return
	}

	endpoint, err := s.gateway.RequestServer(ctx, *m.SelectedLocation, *m.SelectedMap, m.ID)
	if err != nil {
		s.provisionFailed(ctx, m, err)
		return
	}

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := s.matches.ProvisionSucceeded(tx, m.ID, endpoint)
		if err != nil {
			return fmt.Errorf("record endpoint: %w", err)
		}

		err = s.wagers.MarkLive(tx, m.WagerID)
		if err != nil {
			return fmt.Errorf("mark wager live: %w", err)
		}

		return nil
	})
	if err != nil {
		s.provisionFailed(ctx, m, fmt.Errorf("commit provisioned server: %w", err))
		return
	}

	slog.Info("server provisioned", "matchId", m.ID, "endpoint", endpoint)

	s.notifier.Notify(ctx, notify.Event{
		Kind: "match.server_ready",
		Payload: map[string]any{
			"matchId":  m.ID.String(),
			"endpoint": endpoint,
		},
	})
}

// provisionFailed releases the single-flight claim so a later tick retries,
// and escalates the wager to DISPUTED once attempts are exhausted. Funds
// stay locked; unwinding a disputed wager is an admin decision.
func (s *Service) provisionFailed(ctx context.Context, m *matches.Match, cause error) {
	attempts, err := s.matches.ProvisionFailed(ctx, m.ID)
	if err != nil {
		slog.Error("record provision failure", "matchId", m.ID, "error", err)
		return
	}

	if attempts < s.cfg.MaxProvisionAttempts {
		slog.Warn("server provisioning failed, will retry",
			"matchId", m.ID, "attempt", attempts, "error", cause)
		return
	}

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.wagers.MarkDisputed(tx, m.WagerID,
			"server provisioning failed after retries", wagers.StatusLocked)
	})
	if err != nil {
		slog.Error("escalate provisioning failure", "matchId", m.ID, "error", err)
		return
	}

	slog.Error("match escalated to dispute: provisioning exhausted",
		"matchId", m.ID, "attempts", attempts, "error", cause)
}
