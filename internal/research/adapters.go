package research

import (
	"context"
	"log"
	"strings"

	"web3research/backend/internal/coinmarketcap"
	"web3research/backend/internal/defillama"
	"web3research/backend/internal/dune"
	"web3research/backend/internal/etherscan"
)

// supportedChains are the chain filters the DeFi aggregator understands.
var supportedChains = []string{
	"ethereum", "arbitrum", "optimism", "polygon", "bsc", "avalanche",
	"solana", "base", "fantom", "zksync", "tron", "linea",
}

// analyticsQueries maps query topics to saved analytics query IDs.
var analyticsQueries = []struct {
	Keyword string
	ID      int
}{
	{"volume", 1234567},
	{"whale", 1234571},
	{"gas", 1234572},
	{"nft", 1234570},
	{"defi", 1234569},
}

const defaultAnalyticsQueryID = 1234567

func okResult(tool string, payload Payload) ToolResult {
	return ToolResult{Tool: tool, Success: true, Payload: payload}
}

func failedResult(tool string, err error) ToolResult {
	return ToolResult{Tool: tool, Success: false, Err: err.Error()}
}

// CoinMarketCapAdapter routes market-data queries: a detected symbol wins and
// fetches quotes (or full asset info for information-flavored queries),
// otherwise the query text picks global metrics, rankings, or a default
// listings sweep.
type CoinMarketCapAdapter struct {
	client coinmarketcap.Client
}

func NewCoinMarketCapAdapter(client coinmarketcap.Client) CoinMarketCapAdapter {
	return CoinMarketCapAdapter{client: client}
}

func (CoinMarketCapAdapter) Name() string { return ToolCoinMarketCap }

func (a CoinMarketCapAdapter) Invoke(ctx context.Context, req Request) ToolResult {
	lower := strings.ToLower(req.Query)
	symbol := coinmarketcap.SymbolFor(req.Query)

	if symbol != "" && Classify(req.Query) == IntentInformation {
		if payload, ok := a.assetInfo(ctx, symbol); ok {
			return okResult(ToolCoinMarketCap, payload)
		}
	}

	if symbol != "" {
		quotes, err := a.client.Quotes(ctx, symbol)
		if err != nil {
			return failedResult(ToolCoinMarketCap, err)
		}
		return okResult(ToolCoinMarketCap, MarketQuotes{Quotes: toMarketQuotes(quotes)})
	}

	switch {
	case containsAny(lower, "global", "total market", "global metrics"):
		metrics, err := a.client.GlobalMetrics(ctx)
		if err != nil {
			return failedResult(ToolCoinMarketCap, err)
		}
		return okResult(ToolCoinMarketCap, GlobalMetrics{
			TotalMarketCap:         metrics.TotalMarketCap,
			TotalVolume24h:         metrics.TotalVolume24h,
			BitcoinDominance:       metrics.BitcoinDominance,
			ActiveCryptocurrencies: metrics.ActiveCryptocurrencies,
		})
	case containsAny(lower, "ranking", "market cap", "top"):
		listings, err := a.client.Listings(ctx, 20)
		if err != nil {
			return failedResult(ToolCoinMarketCap, err)
		}
		return okResult(ToolCoinMarketCap, MarketQuotes{Quotes: toMarketQuotes(listings)})
	default:
		listings, err := a.client.Listings(ctx, 25)
		if err != nil {
			return failedResult(ToolCoinMarketCap, err)
		}
		return okResult(ToolCoinMarketCap, MarketQuotes{Quotes: toMarketQuotes(listings)})
	}
}

// assetInfo fetches descriptive metadata and enriches it with the live quote
// when one is available. A metadata miss falls back to the plain quote path.
func (a CoinMarketCapAdapter) assetInfo(ctx context.Context, symbol string) (CryptoInfo, bool) {
	info, err := a.client.Info(ctx, symbol)
	if err != nil {
		log.Printf("research adapter: coinmarketcap info unavailable, falling back to quotes: symbol=%s err=%v", symbol, err)
		return CryptoInfo{}, false
	}

	payload := CryptoInfo{
		CmcID:       info.ID,
		Name:        info.Name,
		Symbol:      info.Symbol,
		Category:    info.Category,
		Description: info.Description,
		Logo:        info.Logo,
		DateAdded:   info.DateAdded,
		Websites:    info.Websites,
		Tags:        info.Tags,
	}
	if quotes, err := a.client.Quotes(ctx, symbol); err == nil && len(quotes) > 0 {
		quote := quotes[0]
		payload.Price = quote.Price
		payload.MarketCap = quote.MarketCap
		payload.Volume24h = quote.Volume24h
		payload.PercentChange24h = quote.PercentChange24h
		payload.Rank = quote.Rank
		payload.CirculatingSupply = quote.CirculatingSupply
		payload.TotalSupply = quote.TotalSupply
		payload.MaxSupply = quote.MaxSupply
	}
	return payload, true
}

func toMarketQuotes(assets []coinmarketcap.Cryptocurrency) []MarketQuote {
	quotes := make([]MarketQuote, 0, len(assets))
	for _, asset := range assets {
		quotes = append(quotes, MarketQuote{
			Name:              asset.Name,
			Symbol:            asset.Symbol,
			CmcID:             asset.ID,
			Rank:              asset.Rank,
			Price:             asset.Price,
			MarketCap:         asset.MarketCap,
			Volume24h:         asset.Volume24h,
			PercentChange24h:  asset.PercentChange24h,
			PercentChange7d:   asset.PercentChange7d,
			CirculatingSupply: asset.CirculatingSupply,
			TotalSupply:       asset.TotalSupply,
			MaxSupply:         asset.MaxSupply,
		})
	}
	return quotes
}

// DuneAdapter serves pair-level DEX detail for trading queries and saved
// analytics queries for everything else.
type DuneAdapter struct {
	client dune.Client
}

func NewDuneAdapter(client dune.Client) DuneAdapter {
	return DuneAdapter{client: client}
}

func (DuneAdapter) Name() string { return ToolDuneAnalytics }

func (a DuneAdapter) Invoke(ctx context.Context, req Request) ToolResult {
	lower := strings.ToLower(req.Query)

	if containsAny(lower, "dex", "pairs", "trading", "ethereum", "swap") {
		pairs, err := a.client.DexPairs(ctx, "ethereum", "one_day_volume desc", 100)
		if err != nil {
			return failedResult(ToolDuneAnalytics, err)
		}
		return okResult(ToolDuneAnalytics, buildDexTrading(pairs))
	}

	topic, queryID := analyticsQueryFor(lower)
	params := map[string]string{"time_range": req.TimeRange}
	if req.Address != "" {
		params["address"] = req.Address
	}
	rows, err := a.client.QueryRows(ctx, queryID, params)
	if err != nil {
		return failedResult(ToolDuneAnalytics, err)
	}
	return okResult(ToolDuneAnalytics, AnalyticsRows{Description: topic, Rows: rows})
}

func analyticsQueryFor(lowerQuery string) (string, int) {
	for _, preset := range analyticsQueries {
		if strings.Contains(lowerQuery, preset.Keyword) {
			return preset.Keyword, preset.ID
		}
	}
	return "volume", defaultAnalyticsQueryID
}

func buildDexTrading(pairs []dune.DexPair) DexTrading {
	stats := make([]DexPairStat, 0, len(pairs))
	trading := DexTrading{TotalPairs: len(pairs)}
	for _, pair := range pairs {
		stats = append(stats, DexPairStat{
			TokenPair:      pair.TokenPair,
			PairAddress:    pair.PairAddress,
			OneDayVolume:   pair.OneDayVolume,
			SevenDayVolume: pair.SevenDayVolume,
			UsdLiquidity:   pair.UsdLiquidity,
		})
		trading.Total24hVolume += pair.OneDayVolume
		trading.Total7dVolume += pair.SevenDayVolume
		trading.TotalLiquidity += pair.UsdLiquidity
	}
	trading.Pairs = stats
	top := len(stats)
	if top > 5 {
		top = 5
	}
	trading.TopPairs = stats[:top]
	return trading
}

// EtherscanAdapter reads one address: its balance for balance queries, its
// recent transactions otherwise. The dispatcher guarantees an address is
// present before this adapter runs.
type EtherscanAdapter struct {
	client etherscan.Client
}

func NewEtherscanAdapter(client etherscan.Client) EtherscanAdapter {
	return EtherscanAdapter{client: client}
}

func (EtherscanAdapter) Name() string { return ToolEtherscan }

func (a EtherscanAdapter) Invoke(ctx context.Context, req Request) ToolResult {
	if strings.Contains(strings.ToLower(req.Query), "balance") {
		balance, err := a.client.Balance(ctx, req.Address)
		if err != nil {
			return failedResult(ToolEtherscan, err)
		}
		return okResult(ToolEtherscan, WalletBalance{
			Address:    balance.Address,
			BalanceWei: balance.BalanceWei,
			BalanceEth: balance.BalanceEth,
		})
	}

	transactions, err := a.client.Transactions(ctx, req.Address, 100)
	if err != nil {
		return failedResult(ToolEtherscan, err)
	}

	kept := len(transactions)
	if kept > 10 {
		kept = 10
	}
	summaries := make([]TransactionSummary, 0, kept)
	for _, tx := range transactions[:kept] {
		summaries = append(summaries, TransactionSummary{
			Hash:        tx.Hash,
			From:        tx.From,
			To:          tx.To,
			ValueWei:    tx.ValueWei,
			TimeStamp:   tx.TimeStamp,
			BlockNumber: tx.BlockNumber,
			GasUsed:     tx.GasUsed,
			IsError:     tx.IsError,
		})
	}
	return okResult(ToolEtherscan, Transactions{
		Address:      req.Address,
		Transactions: summaries,
		TotalCount:   len(transactions),
	})
}

// DefiLlamaAdapter fetches the aggregate DeFi bundle, scoped to a chain when
// the query names one.
type DefiLlamaAdapter struct {
	client *defillama.Client
}

func NewDefiLlamaAdapter(client *defillama.Client) DefiLlamaAdapter {
	return DefiLlamaAdapter{client: client}
}

func (DefiLlamaAdapter) Name() string { return ToolDefiLlama }

func (a DefiLlamaAdapter) Invoke(ctx context.Context, req Request) ToolResult {
	overview, err := a.client.Overview(ctx, chainFromQuery(req.Query))
	if err != nil {
		return failedResult(ToolDefiLlama, err)
	}
	return okResult(ToolDefiLlama, DefiOverview{Overview: overview})
}

func chainFromQuery(query string) string {
	lower := strings.ToLower(query)
	for _, chain := range supportedChains {
		if strings.Contains(lower, chain) {
			return chain
		}
	}
	return ""
}
