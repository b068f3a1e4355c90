// Package providers reads fixtures, squads and final player statistics from
// the live score feed.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cricketduel/backend/internal/models"
)

const DefaultBaseURL = "https://api.cricapi.com/v1"

var ErrNotConfigured = errors.New("stats provider not configured")

// CricAPIClient reads match scorecards from a CricAPI-compatible feed.
type CricAPIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	userAgent  string
}

func NewCricAPIClient(baseURL, apiKey string, timeout time.Duration) *CricAPIClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CricAPIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: "cricketduel/1.0",
	}
}

type scorecardResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Data   struct {
		ID         string `json:"id"`
		MatchEnded bool   `json:"matchEnded"`
		Scorecard  []struct {
			Inning  string `json:"inning"`
			Batting []struct {
				Batsman struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"batsman"`
				Runs  int `json:"r"`
				Balls int `json:"b"`
			} `json:"batting"`
		} `json:"scorecard"`
	} `json:"data"`
}

// GetFinalStats returns runs and balls faced per player feed id, summed over
// every innings of the match.
func (c *CricAPIClient) GetFinalStats(ctx context.Context, matchAPIID string) (map[string]models.PlayerStat, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("id", matchAPIID)
	endpoint := fmt.Sprintf("%s/match_scorecard?%s", c.baseURL, q.Encode())

	var resp scorecardResponse
	if err := c.fetch(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("scorecard %s: feed status %q: %s", matchAPIID, resp.Status, resp.Reason)
	}

	stats := make(map[string]models.PlayerStat)
	for _, inning := range resp.Data.Scorecard {
		for _, line := range inning.Batting {
			if line.Batsman.ID == "" {
				continue
			}
			st := stats[line.Batsman.ID]
			st.Runs += line.Runs
			st.BallsFaced += line.Balls
			stats[line.Batsman.ID] = st
		}
	}
	return stats, nil
}

func (c *CricAPIClient) fetch(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("stats API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
