package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"web3research/backend/internal/config"
)

const maxErrorBodyBytes = 8 * 1024

var (
	ErrMissingAPIKey  = errors.New("etherscan api key is not configured")
	ErrInvalidAddress = errors.New("invalid ethereum address")
)

type APIError struct {
	StatusCode int
	Body       string
}

func (e APIError) Error() string {
	return fmt.Sprintf("etherscan returned %d: %s", e.StatusCode, e.Body)
}

// Balance holds an account balance in both wei (exact) and ETH (derived).
type Balance struct {
	Address    string
	BalanceWei string
	BalanceEth float64
}

type Transaction struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	ValueWei    string `json:"value"`
	TimeStamp   string `json:"timeStamp"`
	BlockNumber string `json:"blockNumber"`
	GasUsed     string `json:"gasUsed"`
	IsError     string `json:"isError"`
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func NewClient(cfg config.Config, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return Client{
		apiKey:     strings.TrimSpace(cfg.EtherscanAPIKey),
		baseURL:    strings.TrimSpace(cfg.EtherscanBaseURL),
		httpClient: httpClient,
	}
}

// Balance fetches the current balance for one address. The wei figure is the
// exact API value; the ETH figure is a big.Float quotient, never rounded to a
// fixed precision before conversion.
func (c Client) Balance(ctx context.Context, address string) (Balance, error) {
	checksummed, err := c.checkAddress(address)
	if err != nil {
		return Balance{}, err
	}

	query := url.Values{}
	query.Set("module", "account")
	query.Set("action", "balance")
	query.Set("address", checksummed)
	query.Set("tag", "latest")

	body, err := c.get(ctx, query)
	if err != nil {
		return Balance{}, err
	}

	var weiText string
	if err := json.Unmarshal(body, &weiText); err != nil {
		return Balance{}, fmt.Errorf("decode etherscan balance: %w", err)
	}

	wei, ok := new(big.Int).SetString(weiText, 10)
	if !ok {
		return Balance{}, fmt.Errorf("etherscan balance is not a wei amount: %q", weiText)
	}
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()

	return Balance{
		Address:    checksummed,
		BalanceWei: weiText,
		BalanceEth: eth,
	}, nil
}

// Transactions lists recent transactions for one address, newest first.
func (c Client) Transactions(ctx context.Context, address string, limit int) ([]Transaction, error) {
	checksummed, err := c.checkAddress(address)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	query := url.Values{}
	query.Set("module", "account")
	query.Set("action", "txlist")
	query.Set("address", checksummed)
	query.Set("page", "1")
	query.Set("offset", fmt.Sprintf("%d", limit))
	query.Set("sort", "desc")

	body, err := c.get(ctx, query)
	if err != nil {
		return nil, err
	}

	var transactions []Transaction
	if err := json.Unmarshal(body, &transactions); err != nil {
		return nil, fmt.Errorf("decode etherscan transactions: %w", err)
	}
	return transactions, nil
}

func (c Client) checkAddress(address string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	trimmed := strings.TrimSpace(address)
	if !common.IsHexAddress(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return common.HexToAddress(trimmed).Hex(), nil
}

func (c Client) get(ctx context.Context, query url.Values) (json.RawMessage, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse etherscan endpoint: %w", err)
	}
	query.Set("apikey", c.apiKey)
	endpoint.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build etherscan request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request etherscan: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode etherscan response: %w", err)
	}

	// Etherscan signals API-level failures with status "0" and a string
	// result. An empty transaction list also reports status "0".
	if parsed.Status != "1" && parsed.Message != "No transactions found" {
		var detail string
		if err := json.Unmarshal(parsed.Result, &detail); err != nil || detail == "" {
			detail = parsed.Message
		}
		return nil, fmt.Errorf("etherscan rejected request: %s", detail)
	}

	return parsed.Result, nil
}
