package coinmarketcap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"web3research/backend/internal/config"
)

const maxErrorBodyBytes = 8 * 1024

var ErrMissingAPIKey = errors.New("coinmarketcap api key is not configured")

type APIError struct {
	StatusCode int
	Body       string
}

func (e APIError) Error() string {
	return fmt.Sprintf("coinmarketcap returned %d: %s", e.StatusCode, e.Body)
}

// Cryptocurrency is one asset with its USD quote flattened in.
type Cryptocurrency struct {
	ID                int
	Name              string
	Symbol            string
	Rank              int
	Price             float64
	MarketCap         float64
	Volume24h         float64
	PercentChange24h  float64
	PercentChange7d   float64
	CirculatingSupply float64
	TotalSupply       float64
	MaxSupply         float64
}

type GlobalMetrics struct {
	TotalMarketCap         float64
	TotalVolume24h         float64
	BitcoinDominance       float64
	ActiveCryptocurrencies int
}

// AssetInfo is the descriptive metadata CoinMarketCap keeps per asset.
type AssetInfo struct {
	ID          int
	Name        string
	Symbol      string
	Category    string
	Description string
	Logo        string
	DateAdded   string
	Websites    []string
	Tags        []string
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type apiStatus struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type apiQuote struct {
	Price            float64 `json:"price"`
	MarketCap        float64 `json:"market_cap"`
	Volume24h        float64 `json:"volume_24h"`
	PercentChange24h float64 `json:"percent_change_24h"`
	PercentChange7d  float64 `json:"percent_change_7d"`
}

type apiCryptocurrency struct {
	ID                int                 `json:"id"`
	Name              string              `json:"name"`
	Symbol            string              `json:"symbol"`
	CmcRank           int                 `json:"cmc_rank"`
	CirculatingSupply float64             `json:"circulating_supply"`
	TotalSupply       float64             `json:"total_supply"`
	MaxSupply         float64             `json:"max_supply"`
	Quote             map[string]apiQuote `json:"quote"`
}

type quotesAPIResponse struct {
	Status apiStatus                    `json:"status"`
	Data   map[string]apiCryptocurrency `json:"data"`
}

type listingsAPIResponse struct {
	Status apiStatus           `json:"status"`
	Data   []apiCryptocurrency `json:"data"`
}

type apiAssetInfo struct {
	ID          int                 `json:"id"`
	Name        string              `json:"name"`
	Symbol      string              `json:"symbol"`
	Category    string              `json:"category"`
	Description string              `json:"description"`
	Logo        string              `json:"logo"`
	DateAdded   string              `json:"date_added"`
	URLs        map[string][]string `json:"urls"`
	Tags        []string            `json:"tags"`
}

type infoAPIResponse struct {
	Status apiStatus               `json:"status"`
	Data   map[string]apiAssetInfo `json:"data"`
}

type globalAPIQuote struct {
	TotalMarketCap float64 `json:"total_market_cap"`
	TotalVolume24h float64 `json:"total_volume_24h"`
}

type globalAPIResponse struct {
	Status apiStatus `json:"status"`
	Data   struct {
		BtcDominance           float64                   `json:"btc_dominance"`
		ActiveCryptocurrencies int                       `json:"active_cryptocurrencies"`
		Quote                  map[string]globalAPIQuote `json:"quote"`
	} `json:"data"`
}

func NewClient(cfg config.Config, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return Client{
		apiKey:     strings.TrimSpace(cfg.CoinMarketCapAPIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.CoinMarketCapBaseURL), "/"),
		httpClient: httpClient,
	}
}

// Quotes fetches the latest USD quote for one symbol.
func (c Client) Quotes(ctx context.Context, symbol string) ([]Cryptocurrency, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("coinmarketcap quote needs a symbol")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("convert", "USD")

	var parsed quotesAPIResponse
	if err := c.get(ctx, "/cryptocurrency/quotes/latest", params, &parsed); err != nil {
		return nil, err
	}

	quotes := make([]Cryptocurrency, 0, len(parsed.Data))
	for key, entry := range parsed.Data {
		if entry.Symbol == "" {
			entry.Symbol = key
		}
		quotes = append(quotes, flatten(entry))
	}
	return quotes, nil
}

// Listings fetches the top assets by market cap.
func (c Client) Listings(ctx context.Context, limit int) ([]Cryptocurrency, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if limit <= 0 {
		limit = 25
	}

	params := url.Values{}
	params.Set("start", "1")
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("convert", "USD")
	params.Set("sort", "market_cap")
	params.Set("sort_dir", "desc")

	var parsed listingsAPIResponse
	if err := c.get(ctx, "/cryptocurrency/listings/latest", params, &parsed); err != nil {
		return nil, err
	}

	listings := make([]Cryptocurrency, 0, len(parsed.Data))
	for _, entry := range parsed.Data {
		listings = append(listings, flatten(entry))
	}
	return listings, nil
}

// Info fetches descriptive metadata for one symbol.
func (c Client) Info(ctx context.Context, symbol string) (AssetInfo, error) {
	if c.apiKey == "" {
		return AssetInfo{}, ErrMissingAPIKey
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return AssetInfo{}, errors.New("coinmarketcap info needs a symbol")
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	var parsed infoAPIResponse
	if err := c.get(ctx, "/cryptocurrency/info", params, &parsed); err != nil {
		return AssetInfo{}, err
	}

	entry, ok := parsed.Data[symbol]
	if !ok {
		return AssetInfo{}, fmt.Errorf("coinmarketcap has no info for %s", symbol)
	}
	if entry.Symbol == "" {
		entry.Symbol = symbol
	}
	return AssetInfo{
		ID:          entry.ID,
		Name:        entry.Name,
		Symbol:      entry.Symbol,
		Category:    entry.Category,
		Description: entry.Description,
		Logo:        entry.Logo,
		DateAdded:   entry.DateAdded,
		Websites:    entry.URLs["website"],
		Tags:        entry.Tags,
	}, nil
}

// GlobalMetrics fetches market-wide aggregates.
func (c Client) GlobalMetrics(ctx context.Context) (GlobalMetrics, error) {
	if c.apiKey == "" {
		return GlobalMetrics{}, ErrMissingAPIKey
	}

	var parsed globalAPIResponse
	if err := c.get(ctx, "/global-metrics/quotes/latest", url.Values{}, &parsed); err != nil {
		return GlobalMetrics{}, err
	}

	usd := parsed.Data.Quote["USD"]
	return GlobalMetrics{
		TotalMarketCap:         usd.TotalMarketCap,
		TotalVolume24h:         usd.TotalVolume24h,
		BitcoinDominance:       parsed.Data.BtcDominance,
		ActiveCryptocurrencies: parsed.Data.ActiveCryptocurrencies,
	}, nil
}

func (c Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse coinmarketcap endpoint: %w", err)
	}
	endpoint.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build coinmarketcap request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request coinmarketcap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return APIError{
			StatusCode: resp.StatusCode,
			Body:       errorDetail(body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode coinmarketcap response: %w", err)
	}
	return nil
}

func flatten(entry apiCryptocurrency) Cryptocurrency {
	usd := entry.Quote["USD"]
	return Cryptocurrency{
		ID:                entry.ID,
		Name:              entry.Name,
		Symbol:            entry.Symbol,
		Rank:              entry.CmcRank,
		Price:             usd.Price,
		MarketCap:         usd.MarketCap,
		Volume24h:         usd.Volume24h,
		PercentChange24h:  usd.PercentChange24h,
		PercentChange7d:   usd.PercentChange7d,
		CirculatingSupply: entry.CirculatingSupply,
		TotalSupply:       entry.TotalSupply,
		MaxSupply:         entry.MaxSupply,
	}
}

// errorDetail prefers the API's status.error_message over the raw body.
func errorDetail(body []byte) string {
	var parsed struct {
		Status apiStatus `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Status.ErrorMessage != "" {
		return parsed.Status.ErrorMessage
	}
	return strings.TrimSpace(string(body))
}

var symbolTokenPattern = regexp.MustCompile(`[A-Za-z]{2,10}`)

// assetSymbols maps common asset names to their ticker. Ordered so that
// multi-word names match before their components.
var assetSymbols = []struct {
	Name   string
	Symbol string
}{
	{"bitcoin", "BTC"}, {"btc", "BTC"},
	{"ethereum", "ETH"}, {"eth", "ETH"},
	{"cardano", "ADA"}, {"ada", "ADA"},
	{"solana", "SOL"}, {"sol", "SOL"},
	{"polkadot", "DOT"}, {"dot", "DOT"},
	{"chainlink", "LINK"}, {"link", "LINK"},
	{"litecoin", "LTC"}, {"ltc", "LTC"},
	{"dogecoin", "DOGE"}, {"doge", "DOGE"},
	{"ripple", "XRP"}, {"xrp", "XRP"},
	{"binance coin", "BNB"}, {"bnb", "BNB"},
	{"polygon", "MATIC"}, {"matic", "MATIC"},
	{"avalanche", "AVAX"}, {"avax", "AVAX"},
	{"tether", "USDT"}, {"usdt", "USDT"},
	{"usd coin", "USDC"}, {"usdc", "USDC"},
}

// SymbolFor extracts a known ticker from free-form query text. Returns ""
// when no known asset is mentioned.
func SymbolFor(query string) string {
	lower := strings.ToLower(query)
	for _, asset := range assetSymbols {
		if strings.Contains(lower, asset.Name) {
			return asset.Symbol
		}
	}

	known := make(map[string]struct{}, len(assetSymbols))
	for _, asset := range assetSymbols {
		known[asset.Symbol] = struct{}{}
	}
	for _, token := range symbolTokenPattern.FindAllString(query, -1) {
		candidate := strings.ToUpper(token)
		if _, ok := known[candidate]; ok {
			return candidate
		}
	}
	return ""
}
