package dune

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"web3research/backend/internal/config"
)

const (
	maxErrorBodyBytes = 8 * 1024
	maxPollAttempts   = 5
	maxPollDelay      = 5 * time.Second
)

var (
	ErrMissingAPIKey = errors.New("dune api key is not configured")
	ErrPollTimeout   = errors.New("dune query polling timed out")
)

type APIError struct {
	StatusCode int
	Body       string
}

func (e APIError) Error() string {
	return fmt.Sprintf("dune returned %d: %s", e.StatusCode, e.Body)
}

// DexPair is one row of the DEX pair stats endpoint. Volume and liquidity
// figures are denominated in USD.
type DexPair struct {
	TokenPair       string  `json:"token_pair"`
	PairAddress     string  `json:"pair_address"`
	OneDayVolume    float64 `json:"one_day_volume"`
	SevenDayVolume  float64 `json:"seven_day_volume"`
	ThirtyDayVolume float64 `json:"thirty_day_volume"`
	AllTimeVolume   float64 `json:"all_time_volume"`
	UsdLiquidity    float64 `json:"usd_liquidity"`
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type resultEnvelope struct {
	Result struct {
		Rows     []json.RawMessage `json:"rows"`
		Metadata map[string]any    `json:"metadata"`
	} `json:"result"`
	State       string `json:"state"`
	ExecutionID string `json:"execution_id"`
}

func NewClient(cfg config.Config, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return Client{
		apiKey:     strings.TrimSpace(cfg.DuneAPIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.DuneBaseURL), "/"),
		httpClient: httpClient,
	}
}

// DexPairs fetches per-pair trading stats for one chain, sorted by the given
// column expression (for example "one_day_volume desc").
func (c Client) DexPairs(ctx context.Context, chain, sortBy string, limit int) ([]DexPair, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	chain = strings.TrimSpace(chain)
	if chain == "" {
		chain = "ethereum"
	}
	if limit <= 0 {
		limit = 100
	}

	endpoint, err := url.Parse(c.baseURL + "/api/v1/dex/pairs/" + url.PathEscape(chain))
	if err != nil {
		return nil, fmt.Errorf("parse dune endpoint: %w", err)
	}
	params := endpoint.Query()
	params.Set("limit", fmt.Sprintf("%d", limit))
	if sortBy != "" {
		params.Set("sort_by", sortBy)
	}
	endpoint.RawQuery = params.Encode()

	var envelope resultEnvelope
	if err := c.getJSON(ctx, endpoint.String(), &envelope); err != nil {
		return nil, err
	}

	pairs := make([]DexPair, 0, len(envelope.Result.Rows))
	for _, raw := range envelope.Result.Rows {
		var pair DexPair
		if err := json.Unmarshal(raw, &pair); err != nil {
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// QueryRows executes a saved query by ID and polls for its result rows.
// Rows stay untyped because each saved query has its own column set.
func (c Client) QueryRows(ctx context.Context, queryID int, parameters map[string]string) ([]map[string]any, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(map[string]any{"query_parameters": parameters})
	if err != nil {
		return nil, fmt.Errorf("encode dune parameters: %w", err)
	}

	executeURL := fmt.Sprintf("%s/api/v1/query/%d/execute", c.baseURL, queryID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, executeURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build dune request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Dune-API-Key", c.apiKey)

	var execution resultEnvelope
	if err := c.do(httpReq, &execution); err != nil {
		return nil, err
	}
	if execution.ExecutionID == "" {
		return nil, errors.New("dune execute response missing execution id")
	}

	resultsURL := fmt.Sprintf("%s/api/v1/execution/%s/results", c.baseURL, url.PathEscape(execution.ExecutionID))
	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		delay := time.Duration(1<<attempt) * time.Second
		if delay > maxPollDelay {
			delay = maxPollDelay
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}

		var envelope resultEnvelope
		if err := c.getJSON(ctx, resultsURL, &envelope); err != nil {
			return nil, err
		}
		if envelope.State != "QUERY_STATE_COMPLETED" {
			continue
		}

		rows := make([]map[string]any, 0, len(envelope.Result.Rows))
		for _, raw := range envelope.Result.Rows {
			var row map[string]any
			if err := json.Unmarshal(raw, &row); err != nil {
				continue
			}
			rows = append(rows, row)
		}
		return rows, nil
	}

	return nil, ErrPollTimeout
}

func (c Client) getJSON(ctx context.Context, endpoint string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build dune request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Dune-API-Key", c.apiKey)
	return c.do(httpReq, out)
}

func (c Client) do(httpReq *http.Request, out any) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request dune: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode dune response: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
