// Package research orchestrates crypto research requests: it classifies the
// query, plans which provider adapters to call, dispatches them in parallel,
// fuses their results into one canonical dataset, and hands that dataset to a
// language model for synthesis.
package research

import (
	"context"
	"time"

	"web3research/backend/internal/defillama"
)

// Intent is the classified purpose of a research query.
type Intent string

const (
	IntentGreeting    Intent = "greeting"
	IntentAnalysis    Intent = "analysis"
	IntentInformation Intent = "information"
	IntentMarketData  Intent = "market_data"
	IntentComparison  Intent = "comparison"
	IntentTechnical   Intent = "technical"
	IntentGeneral     Intent = "general"
)

// Adapter names double as source tags in merged data and citations.
const (
	ToolCoinMarketCap = "coinmarketcap"
	ToolDuneAnalytics = "dune_analytics"
	ToolEtherscan     = "etherscan"
	ToolDefiLlama     = "defillama"
)

// TimeRanges lists the accepted time_range values. The first entry is the
// default.
var TimeRanges = []string{"7d", "1d", "30d", "90d"}

// ValidTimeRange reports whether value is an accepted time range.
func ValidTimeRange(value string) bool {
	for _, tr := range TimeRanges {
		if value == tr {
			return true
		}
	}
	return false
}

// Request is one research request. Immutable once constructed; the planner
// returns a substituted address separately instead of mutating it.
type Request struct {
	Query     string
	Address   string
	TimeRange string
	SessionID string
}

// Citation attributes one distinct data source that informed a response.
type Citation struct {
	Source       string    `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
	QueryContext string    `json:"query_context"`
}

// Response is the full research outcome returned to the caller. Failed runs
// carry the reasoning steps accumulated before the failure.
type Response struct {
	Success           bool       `json:"success"`
	Result            string     `json:"result,omitempty"`
	Error             string     `json:"error,omitempty"`
	ReasoningSteps    []string   `json:"reasoning_steps"`
	Citations         []Citation `json:"citations"`
	DataSourcesUsed   []string   `json:"data_sources_used"`
	ExecutionTime     float64    `json:"execution_time"`
	QueryIntent       Intent     `json:"query_intent"`
	CompletenessScore float64    `json:"completeness_score"`
	SessionID         string     `json:"session_id"`
}

// ToolResult is one adapter invocation outcome. Adapters never return Go
// errors; failure is data, carried in Err with Success false and a nil
// Payload.
type ToolResult struct {
	Tool    string
	Success bool
	Payload Payload
	Err     string
}

// Adapter is the uniform boundary over one data provider.
type Adapter interface {
	Name() string
	Invoke(ctx context.Context, req Request) ToolResult
}

// PromptResponder produces the synthesized prose for a research brief.
type PromptResponder interface {
	Respond(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Payload is a normalized provider result. The fusion engine places each
// variant into the merged dataset by type.
type Payload interface {
	isPayload()
}

// MarketQuote is one asset's market snapshot.
type MarketQuote struct {
	Name              string
	Symbol            string
	CmcID             int
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

func (MarketQuote) isPayload() {}

// MarketQuotes carries the quotes one market-data call returned, in provider
// order. Fusion splits it into one record per symbol.
type MarketQuotes struct {
	Quotes []MarketQuote
}

func (MarketQuotes) isPayload() {}

// CryptoInfo is descriptive asset metadata, enriched with market fields when
// a quote was available alongside.
type CryptoInfo struct {
	CmcID       int
	Name        string
	Symbol      string
	Category    string
	Description string
	Logo        string
	DateAdded   string
	Websites    []string
	Tags        []string

	Price             float64
	MarketCap         float64
	Volume24h         float64
	PercentChange24h  float64
	Rank              int
	CirculatingSupply float64
	TotalSupply       float64
	MaxSupply         float64
}

func (CryptoInfo) isPayload() {}

// GlobalMetrics is the market-wide aggregate snapshot.
type GlobalMetrics struct {
	TotalMarketCap         float64
	TotalVolume24h         float64
	BitcoinDominance       float64
	ActiveCryptocurrencies int
}

func (GlobalMetrics) isPayload() {}

// DexPairStat is one trading pair's volume and liquidity figures in USD.
type DexPairStat struct {
	TokenPair      string
	PairAddress    string
	OneDayVolume   float64
	SevenDayVolume float64
	UsdLiquidity   float64
}

// DexTrading aggregates pair-level trading detail: totals are sums over all
// pairs, TopPairs keeps the first five rows.
type DexTrading struct {
	Pairs          []DexPairStat
	TotalPairs     int
	Total24hVolume float64
	Total7dVolume  float64
	TotalLiquidity float64
	TopPairs       []DexPairStat
}

func (DexTrading) isPayload() {}

// AnalyticsRows carries unshaped analytics rows whose column set depends on
// the upstream query.
type AnalyticsRows struct {
	Description string
	Rows        []map[string]any
}

func (AnalyticsRows) isPayload() {}

// WalletBalance is one address balance. Wei is the exact provider string.
type WalletBalance struct {
	Address    string
	BalanceWei string
	BalanceEth float64
}

func (WalletBalance) isPayload() {}

// TransactionSummary is one on-chain transaction row.
type TransactionSummary struct {
	Hash        string
	From        string
	To          string
	ValueWei    string
	TimeStamp   string
	BlockNumber string
	GasUsed     string
	IsError     string
}

// Transactions lists an address's recent transactions (first 10 retained)
// plus the total count the provider reported.
type Transactions struct {
	Address      string
	Transactions []TransactionSummary
	TotalCount   int
}

func (Transactions) isPayload() {}

// DefiOverview wraps the aggregate DeFi bundle; fusion decomposes it into
// per-section records.
type DefiOverview struct {
	Overview defillama.Overview
}

func (DefiOverview) isPayload() {}

// Per-section records split out of a DefiOverview bundle. Empty sections are
// never stored.
type TVLSection struct{ defillama.TVLOverview }

func (TVLSection) isPayload() {}

type StablecoinsSection struct{ defillama.StablecoinsOverview }

func (StablecoinsSection) isPayload() {}

type DexOverviewSection struct{ defillama.ProtocolsOverview }

func (DexOverviewSection) isPayload() {}

type FeesOverviewSection struct{ defillama.ProtocolsOverview }

func (FeesOverviewSection) isPayload() {}

type YieldsSection struct{ defillama.YieldsOverview }

func (YieldsSection) isPayload() {}

type BridgesSection struct{ defillama.BridgesOverview }

func (BridgesSection) isPayload() {}

// RawPayload preserves an unrecognized provider shape verbatim so it still
// counts toward data-richness instead of being dropped.
type RawPayload struct {
	Provider string
	Data     any
}

func (RawPayload) isPayload() {}
