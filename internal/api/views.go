package api

import (
	"time"

	"github.com/duelpit/duelpit/internal/repos/accounts"
	"github.com/duelpit/duelpit/internal/repos/ledgertx"
	"github.com/duelpit/duelpit/internal/repos/matches"
	"github.com/duelpit/duelpit/internal/repos/wagers"
	"github.com/duelpit/duelpit/internal/services/match"
)

type wagerView struct {
	ID          string    `json:"id"`
	CreatorID   int64     `json:"creatorId"`
	OpponentID  *int64    `json:"opponentId,omitempty"`
	Stake       int64     `json:"stake"`
	GameMap     string    `json:"map"`
	Mode        string    `json:"mode"`
	Status      string    `json:"status"`
	Pot         int64     `json:"pot,omitempty"`
	WinnerID    *int64    `json:"winnerId,omitempty"`
	MatchID     *string   `json:"matchId,omitempty"`
	AuditReason *string   `json:"auditReason,omitempty"`
	ResolvedBy  *int64    `json:"resolvedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func viewWager(w *wagers.Wager) wagerView {
	v := wagerView{
		ID:          w.ID.String(),
		CreatorID:   w.CreatorID,
		OpponentID:  w.OpponentID,
		Stake:       w.Stake,
		GameMap:     w.GameMap,
		Mode:        w.Mode,
		Status:      string(w.Status),
		Pot:         w.Pot,
		WinnerID:    w.WinnerID,
		AuditReason: w.AuditReason,
		ResolvedBy:  w.ResolvedBy,
		CreatedAt:   w.CreatedAt,
		ExpiresAt:   w.ExpiresAt,
	}
	if w.MatchID != nil {
		id := w.MatchID.String()
		v.MatchID = &id
	}
	return v
}

func viewWagers(ws []wagers.Wager) []wagerView {
	out := make([]wagerView, 0, len(ws))
	for i := range ws {
		out = append(out, viewWager(&ws[i]))
	}
	return out
}

type matchView struct {
	ID               string     `json:"id"`
	WagerID          string     `json:"wagerId"`
	CreatorID        int64      `json:"creatorId"`
	OpponentID       int64      `json:"opponentId"`
	Phase            string     `json:"phase"`
	LocationPool     []string   `json:"locationPool"`
	MapPool          []string   `json:"mapPool"`
	SelectedLocation *string    `json:"selectedLocation,omitempty"`
	SelectedMap      *string    `json:"selectedMap,omitempty"`
	ServerEndpoint   *string    `json:"serverEndpoint,omitempty"`
	CreatorScore     int        `json:"creatorScore"`
	OpponentScore    int        `json:"opponentScore"`
	CreatedAt        time.Time  `json:"createdAt"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
}

func viewMatch(m *matches.Match) matchView {
	return matchView{
		ID:               m.ID.String(),
		WagerID:          m.WagerID.String(),
		CreatorID:        m.CreatorID,
		OpponentID:       m.OpponentID,
		Phase:            string(m.Phase),
		LocationPool:     m.LocationPool,
		MapPool:          m.MapPool,
		SelectedLocation: m.SelectedLocation,
		SelectedMap:      m.SelectedMap,
		ServerEndpoint:   m.ServerEndpoint,
		CreatorScore:     m.CreatorScore,
		OpponentScore:    m.OpponentScore,
		CreatedAt:        m.CreatedAt,
		FinishedAt:       m.FinishedAt,
	}
}

type banView struct {
	Ordinal   int       `json:"ordinal"`
	Pool      string    `json:"pool"`
	Candidate string    `json:"candidate"`
	Side      string    `json:"side"`
	BannedAt  time.Time `json:"bannedAt"`
}

type matchDetailView struct {
	matchView
	Bans []banView `json:"bans"`
}

func viewMatchDetail(d *match.Detail) matchDetailView {
	out := matchDetailView{matchView: viewMatch(d.Match), Bans: make([]banView, 0, len(d.Bans))}
	for _, b := range d.Bans {
		out.Bans = append(out.Bans, banView{
			Ordinal:   b.Ordinal,
			Pool:      string(b.Pool),
			Candidate: b.Candidate,
			Side:      string(b.Side),
			BannedAt:  b.BannedAt,
		})
	}
	return out
}

type entryView struct {
	ID          string    `json:"id"`
	AccountID   int64     `json:"accountId"`
	Amount      int64     `json:"amount"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	WagerID     *string   `json:"wagerId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func viewEntries(es []ledgertx.Entry) []entryView {
	out := make([]entryView, 0, len(es))
	for _, e := range es {
		v := entryView{
			ID:          e.ID.String(),
			AccountID:   e.AccountID,
			Amount:      e.Amount,
			Kind:        string(e.Kind),
			Description: e.Description,
			CreatedAt:   e.CreatedAt,
		}
		if e.WagerID != nil {
			id := e.WagerID.String()
			v.WagerID = &id
		}
		out = append(out, v)
	}
	return out
}

type balanceView struct {
	AccountID int64 `json:"accountId"`
	Available int64 `json:"available"`
	Locked    int64 `json:"locked"`
}

func viewBalance(b accounts.Balance) balanceView {
	return balanceView{AccountID: b.AccountID, Available: b.Available, Locked: b.Locked}
}
