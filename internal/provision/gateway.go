// Package provision wraps the external game-server provisioner. The rest of
// the system treats it as an unreliable black box: requests may fail and are
// retried a bounded number of times by the caller.
package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Status is one observation of a live game session. Scores are eventually
// consistent; only Finished=true is authoritative.
type Status struct {
	CreatorScore  int  `json:"creatorScore"`
	OpponentScore int  `json:"opponentScore"`
	Finished      bool `json:"finished"`
}

type Gateway interface {
	// RequestServer asks for a server at (location, map) and returns its
	// connection endpoint.
	RequestServer(ctx context.Context, location, gameMap string, matchRef uuid.UUID) (string, error)
	// PollStatus reads the current session state for a match.
	PollStatus(ctx context.Context, matchRef uuid.UUID) (Status, error)
}

// HTTPGateway talks JSON over HTTP to the provisioner.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

var _ Gateway = (*HTTPGateway)(nil)

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type requestServerBody struct {
	Location string `json:"location"`
	Map      string `json:"map"`
	MatchRef string `json:"matchRef"`
}

type requestServerResponse struct {
	Endpoint string `json:"endpoint"`
}

func (g *HTTPGateway) RequestServer(ctx context.Context, location, gameMap string, matchRef uuid.UUID) (string, error) {
	body, err := json.Marshal(requestServerBody{
		Location: location,
		Map:      gameMap,
		MatchRef: matchRef.String(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/servers", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("provisioner returned %d: %s", resp.StatusCode, payload)
	}

	var out requestServerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Endpoint == "" {
		return "", fmt.Errorf("provisioner returned empty endpoint")
	}

	return out.Endpoint, nil
}

func (g *HTTPGateway) PollStatus(ctx context.Context, matchRef uuid.UUID) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/servers/"+matchRef.String(), nil)
	if err != nil {
		return Status{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("poll status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Status{}, fmt.Errorf("provisioner returned %d: %s", resp.StatusCode, payload)
	}

	var out Status
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}

	return out, nil
}
