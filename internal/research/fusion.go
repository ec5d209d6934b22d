package research

import (
	"fmt"
	"sort"

	"web3research/backend/internal/defillama"
)

// MergeMetadata describes how a merged dataset was assembled.
type MergeMetadata struct {
	SourcesUsed       []string
	CompletenessScore int
	Conflicts         []string
}

// MergedDataset partitions fused provider records into headline data and
// supporting context. Built fresh per request, never shared.
type MergedDataset struct {
	Primary       map[string]Payload
	Supplementary map[string]Payload
	Metadata      MergeMetadata
}

// CanonicalEntry names the provider whose record answers one semantic field
// category.
type CanonicalEntry struct {
	Source  string
	Payload Payload
}

// Merge folds successful tool results into one dataset and scores its
// completeness for the given intent. A tool is credited in SourcesUsed only
// when at least one of its records landed.
func Merge(results []ToolResult, intent Intent) MergedDataset {
	merged := MergedDataset{
		Primary:       make(map[string]Payload),
		Supplementary: make(map[string]Payload),
	}

	for _, result := range results {
		if !result.Success || result.Payload == nil {
			continue
		}
		if placePayload(&merged, result.Payload) {
			merged.Metadata.SourcesUsed = append(merged.Metadata.SourcesUsed, result.Tool)
		}
	}

	merged.Metadata.CompletenessScore = completenessScore(&merged, intent)
	return merged
}

func placePayload(merged *MergedDataset, payload Payload) bool {
	switch p := payload.(type) {
	case MarketQuote:
		if p.Symbol == "" {
			return false
		}
		merged.Primary["market_"+p.Symbol] = p
		return true
	case MarketQuotes:
		contributed := false
		for _, quote := range p.Quotes {
			if quote.Symbol == "" {
				continue
			}
			merged.Primary["market_"+quote.Symbol] = quote
			contributed = true
		}
		return contributed
	case CryptoInfo:
		merged.Primary[fmt.Sprintf("%s_%d", p.Symbol, p.CmcID)] = p
		return true
	case GlobalMetrics:
		merged.Supplementary["global_metrics"] = p
		return true
	case DexTrading:
		merged.Primary["dex_trading"] = p
		return true
	case AnalyticsRows:
		if len(p.Rows) == 0 {
			return false
		}
		merged.Supplementary["blockchain_analytics"] = p
		return true
	case WalletBalance:
		merged.Supplementary["wallet_balance"] = p
		return true
	case Transactions:
		merged.Supplementary["transactions"] = p
		return true
	case DefiOverview:
		return placeOverviewSections(merged, p.Overview)
	case RawPayload:
		if p.Provider == "" || p.Data == nil {
			return false
		}
		merged.Supplementary[p.Provider+"_data"] = p
		return true
	}
	return false
}

func placeOverviewSections(merged *MergedDataset, overview defillama.Overview) bool {
	contributed := false
	if overview.TVL.ChainsCount > 0 || len(overview.TVL.TopChains) > 0 {
		merged.Supplementary["defillama_tvl"] = TVLSection{overview.TVL}
		contributed = true
	}
	if overview.Stablecoins.AssetsCount > 0 || len(overview.Stablecoins.TopAssets) > 0 {
		merged.Supplementary["defillama_stablecoins"] = StablecoinsSection{overview.Stablecoins}
		contributed = true
	}
	if overview.Dex.ProtocolsCount > 0 || overview.Dex.Total24h > 0 {
		merged.Supplementary["defillama_dex"] = DexOverviewSection{overview.Dex}
		contributed = true
	}
	if overview.Fees.ProtocolsCount > 0 || overview.Fees.Total24h > 0 {
		merged.Supplementary["defillama_fees"] = FeesOverviewSection{overview.Fees}
		contributed = true
	}
	if overview.Yields.PoolsCount > 0 || len(overview.Yields.TopPools) > 0 {
		merged.Supplementary["defillama_yields"] = YieldsSection{overview.Yields}
		contributed = true
	}
	if overview.Bridges.BridgesCount > 0 || len(overview.Bridges.TopBridges) > 0 {
		merged.Supplementary["defillama_bridges"] = BridgesSection{overview.Bridges}
		contributed = true
	}
	return contributed
}

// completenessScore rates how well the dataset can answer the intent.
// Weights favor the record kinds each intent leans on, then reward source
// diversity and record count. Scores land in [0, 100].
func completenessScore(merged *MergedDataset, intent Intent) int {
	score := 0
	if len(merged.Primary) > 0 || len(merged.Supplementary) > 0 {
		score += 15
	}

	var hasMarket, hasInfo bool
	for _, payload := range merged.Primary {
		switch payload.(type) {
		case MarketQuote:
			hasMarket = true
		case CryptoInfo:
			hasInfo = true
		}
	}
	_, hasDex := merged.Primary["dex_trading"]
	_, hasGlobal := merged.Supplementary["global_metrics"]
	_, hasTransactions := merged.Supplementary["transactions"]
	_, hasAnalytics := merged.Supplementary["blockchain_analytics"]

	switch intent {
	case IntentInformation:
		if hasInfo {
			score += 35
		}
		if hasMarket {
			score += 20
		}
		if hasGlobal {
			score += 10
		}
	case IntentMarketData:
		if hasMarket {
			score += 40
		}
		if hasGlobal {
			score += 20
		}
		if hasDex {
			score += 25
		}
	case IntentTechnical:
		if hasDex {
			score += 35
		}
		if hasAnalytics {
			score += 25
		}
		if hasTransactions {
			score += 15
		}
	case IntentAnalysis:
		kinds := 0
		if hasMarket {
			score += 25
			kinds++
		}
		if hasInfo {
			score += 20
			kinds++
		}
		if hasDex {
			score += 15
			kinds++
		}
		if hasGlobal {
			score += 10
			kinds++
		}
		if hasTransactions {
			score += 10
			kinds++
		}
		if hasAnalytics {
			score += 10
			kinds++
		}
		if kinds >= 4 {
			score += 10
		}
	default:
		if hasMarket {
			score += 30
		}
		if hasInfo {
			score += 20
		}
		if hasDex {
			score += 15
		}
		if hasGlobal {
			score += 10
		}
		if hasAnalytics {
			score += 10
		}
	}

	distinct := make(map[string]struct{}, len(merged.Metadata.SourcesUsed))
	for _, source := range merged.Metadata.SourcesUsed {
		distinct[source] = struct{}{}
	}
	switch {
	case len(distinct) >= 3:
		score += 15
	case len(distinct) == 2:
		score += 10
	case len(distinct) == 1:
		score += 5
	}

	records := len(merged.Primary) + len(merged.Supplementary)
	if records >= 5 {
		score += 10
	} else if records >= 3 {
		score += 5
	}

	if len(merged.Metadata.SourcesUsed) > 0 && records > 0 && score < 20 {
		score = 20
	}
	if score > 100 {
		score = 100
	}
	return score
}

// canonicalPrecedence fixes which provider owns each semantic field category.
// The canonical view never blends providers for one category: the owner's
// record wins and rivals are noted in Conflicts.
var canonicalPrecedence = map[string]string{
	"tvl":            ToolDefiLlama,
	"stablecoins":    ToolDefiLlama,
	"dex_overview":   ToolDefiLlama,
	"fees_overview":  ToolDefiLlama,
	"yields":         ToolDefiLlama,
	"bridges":        ToolDefiLlama,
	"market":         ToolCoinMarketCap,
	"dex_trading":    ToolDuneAnalytics,
	"wallet_balance": ToolEtherscan,
	"transactions":   ToolEtherscan,
}

var llamaSectionCategories = map[string]string{
	"defillama_tvl":         "tvl",
	"defillama_stablecoins": "stablecoins",
	"defillama_dex":         "dex_overview",
	"defillama_fees":        "fees_overview",
	"defillama_yields":      "yields",
	"defillama_bridges":     "bridges",
}

// Canonical picks one source of truth per field category, consulting the
// precedence table, and rewrites the dataset's conflict notes. The result is
// independent of tool result order.
func Canonical(merged *MergedDataset) map[string]CanonicalEntry {
	candidates := make(map[string]map[string]Payload)
	add := func(category, source string, payload Payload) {
		byCategory, ok := candidates[category]
		if !ok {
			byCategory = make(map[string]Payload)
			candidates[category] = byCategory
		}
		byCategory[source] = payload
	}

	for key, category := range llamaSectionCategories {
		if payload, ok := merged.Supplementary[key]; ok {
			add(category, ToolDefiLlama, payload)
		}
	}

	marketKeys := make([]string, 0)
	for key, payload := range merged.Primary {
		if _, ok := payload.(MarketQuote); ok {
			marketKeys = append(marketKeys, key)
		}
	}
	if len(marketKeys) > 0 {
		sort.Strings(marketKeys)
		add("market", ToolCoinMarketCap, merged.Primary[marketKeys[0]])
	}

	if payload, ok := merged.Primary["dex_trading"]; ok {
		add("dex_trading", ToolDuneAnalytics, payload)
	}
	if payload, ok := merged.Supplementary["wallet_balance"]; ok {
		add("wallet_balance", ToolEtherscan, payload)
	}
	if payload, ok := merged.Supplementary["transactions"]; ok {
		add("transactions", ToolEtherscan, payload)
	}

	// A market-wide cap reads like a total-value figure; it competes for the
	// tvl slot but never owns it.
	if metrics, ok := merged.Supplementary["global_metrics"].(GlobalMetrics); ok && metrics.TotalMarketCap > 0 {
		add("tvl", ToolCoinMarketCap, metrics)
	}

	categories := make([]string, 0, len(candidates))
	for category := range candidates {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	canonical := make(map[string]CanonicalEntry, len(candidates))
	merged.Metadata.Conflicts = nil
	for _, category := range categories {
		byCategory := candidates[category]
		owner := canonicalPrecedence[category]
		payload, ok := byCategory[owner]
		if !ok {
			continue
		}
		canonical[category] = CanonicalEntry{Source: owner, Payload: payload}

		rivals := make([]string, 0, len(byCategory))
		for source := range byCategory {
			if source != owner {
				rivals = append(rivals, source)
			}
		}
		sort.Strings(rivals)
		for _, rival := range rivals {
			merged.Metadata.Conflicts = append(merged.Metadata.Conflicts,
				fmt.Sprintf("%s: kept %s, ignored %s", category, owner, rival))
		}
	}
	return canonical
}
