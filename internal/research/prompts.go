package research

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// synthesisSystemPrompt sets the analyst role. The exact-value rules matter
// most: the model must repeat provider numbers verbatim, so the briefing
// below restates each number next to an instruction to keep it unchanged.
const synthesisSystemPrompt = `You are an expert Web3 research analyst. You merge information from multiple data providers into one professional research report while keeping context from earlier turns of the conversation.

Core responsibilities:
1. Answer exactly what the user asked; adapt structure, depth, and focus to the query.
2. Reference and build upon the conversation history when relevant instead of repeating it.
3. Use all available data sources and cross-reference them.
4. Repeat provider numbers exactly as given. Never round, estimate, or invent a value.
5. Attribute every data point to its source.
6. State limitations clearly when data is incomplete.
7. Close with suggested follow-up questions that would deepen the analysis.

Available data sources:
- dune_analytics: blockchain metrics, trading volumes, DEX pair data
- etherscan: on-chain transactions, wallet balances
- coinmarketcap: market data, price analysis, asset metadata
- defillama: TVL, yields, stablecoins, DEX volumes, fees, bridges

Include a market-volatility disclaimer whenever giving investment advice.`

func formatPreference(intent Intent) string {
	switch intent {
	case IntentAnalysis:
		return "analytical_report"
	case IntentInformation:
		return "informational_overview"
	case IntentMarketData:
		return "market_report"
	case IntentComparison:
		return "comparative_analysis"
	case IntentTechnical:
		return "technical_report"
	default:
		return "standard"
	}
}

func fmtMoney(value float64, decimals int) string {
	return "$" + humanize.CommafWithDigits(value, decimals)
}

func fmtPct(value float64) string {
	return fmt.Sprintf("%+.2f%%", value)
}

// BuildSynthesisPrompt assembles the user-side briefing for the synthesis
// model: the query and its intent, conversation history, the canonical
// source-of-truth directives, every merged record with exact values, and the
// response format the intent calls for. Record keys are walked in sorted
// order so the same dataset always yields the same prompt.
func BuildSynthesisPrompt(req Request, intent Intent, results []ToolResult, merged *MergedDataset, canonical map[string]CanonicalEntry, conversationSummary string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Original Query: %s\n", req.Query)
	fmt.Fprintf(&b, "Query Intent: %s\n", intent)
	fmt.Fprintf(&b, "Preferred Format: %s\n", formatPreference(intent))
	fmt.Fprintf(&b, "The user is asking for %s information and expects a %s style response.\n", intent, formatPreference(intent))

	if conversationSummary != "" {
		b.WriteString("\n=== CONVERSATION HISTORY ===\n")
		b.WriteString("Reference and build upon this previous conversation:\n")
		b.WriteString(conversationSummary)
		b.WriteString("\nConnect the current query to this history when relevant, and keep recommendations consistent with earlier turns unless new data suggests a change.\n")
		b.WriteString("=== END CONVERSATION HISTORY ===\n")
	}

	if req.Address != "" {
		fmt.Fprintf(&b, "\nAddress Analyzed: %s\n", req.Address)
	}
	fmt.Fprintf(&b, "Time Range: %s\n", req.TimeRange)

	writeCanonicalDirectives(&b, canonical)

	fmt.Fprintf(&b, "\n=== MERGED DATA ===\n")
	fmt.Fprintf(&b, "Data Completeness: %d%%\n", merged.Metadata.CompletenessScore)
	fmt.Fprintf(&b, "Sources Used: %s\n", strings.Join(merged.Metadata.SourcesUsed, ", "))
	for _, conflict := range merged.Metadata.Conflicts {
		fmt.Fprintf(&b, "Conflict resolved: %s\n", conflict)
	}

	writePrimaryData(&b, merged)
	writeSupplementaryData(&b, merged)
	writeToolSummary(&b, results)
	writeFormatRequirements(&b, req, intent, merged)

	return b.String()
}

func writeCanonicalDirectives(b *strings.Builder, canonical map[string]CanonicalEntry) {
	if len(canonical) == 0 {
		return
	}
	b.WriteString("\n=== CANONICAL DATA (SOURCE OF TRUTH) ===\n")

	if entry, ok := canonical["market"]; ok {
		if quote, ok := entry.Payload.(MarketQuote); ok {
			fmt.Fprintf(b, "Use %s for market data: %s price %s, market cap %s\n",
				entry.Source, quote.Symbol, fmtMoney(quote.Price, 8), fmtMoney(quote.MarketCap, 0))
		}
	}

	directives := []struct {
		category string
		text     string
	}{
		{"tvl", "the TVL overview"},
		{"stablecoins", "the stablecoins overview"},
		{"dex_overview", "DEX overview volumes"},
		{"fees_overview", "the fees and revenue overview"},
		{"yields", "yields data"},
		{"bridges", "bridges data"},
	}
	for _, directive := range directives {
		if entry, ok := canonical[directive.category]; ok {
			fmt.Fprintf(b, "Use %s for %s\n", entry.Source, directive.text)
		}
	}

	if entry, ok := canonical["dex_trading"]; ok {
		if trading, ok := entry.Payload.(DexTrading); ok {
			fmt.Fprintf(b, "Use %s for DEX pair trading detail (%d pairs)\n", entry.Source, trading.TotalPairs)
		}
	}
	if _, ok := canonical["wallet_balance"]; ok {
		fmt.Fprintf(b, "Use %s for wallet balances\n", ToolEtherscan)
	}
	if _, ok := canonical["transactions"]; ok {
		fmt.Fprintf(b, "Use %s for transaction history\n", ToolEtherscan)
	}
}

func writePrimaryData(b *strings.Builder, merged *MergedDataset) {
	if len(merged.Primary) == 0 {
		return
	}
	b.WriteString("\nPrimary data (use these exact values):\n")

	keys := make([]string, 0, len(merged.Primary))
	for key := range merged.Primary {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch record := merged.Primary[key].(type) {
		case MarketQuote:
			fmt.Fprintf(b, "- %s (%s) market data: price %s, 24h change %s, 7d change %s, market cap %s, 24h volume %s",
				record.Name, record.Symbol, fmtMoney(record.Price, 8), fmtPct(record.PercentChange24h),
				fmtPct(record.PercentChange7d), fmtMoney(record.MarketCap, 0), fmtMoney(record.Volume24h, 0))
			if record.Rank > 0 {
				fmt.Fprintf(b, ", rank #%d", record.Rank)
			}
			b.WriteString("\n  Use these numbers exactly as shown; do not round or approximate.\n")
		case CryptoInfo:
			fmt.Fprintf(b, "- %s (%s), category %s\n", record.Name, record.Symbol, record.Category)
			if record.Description != "" {
				fmt.Fprintf(b, "  Description: %s\n", truncate(record.Description, 100))
			}
			if record.Price != 0 {
				fmt.Fprintf(b, "  Exact price: %s\n", fmtMoney(record.Price, 8))
			}
			if record.PercentChange24h != 0 {
				fmt.Fprintf(b, "  Exact 24h change: %s\n", fmtPct(record.PercentChange24h))
			}
			if record.MarketCap != 0 {
				fmt.Fprintf(b, "  Exact market cap: %s\n", fmtMoney(record.MarketCap, 0))
			}
			if record.CirculatingSupply != 0 {
				fmt.Fprintf(b, "  Exact circulating supply: %s\n", humanize.CommafWithDigits(record.CirculatingSupply, 8))
			}
			if record.Rank > 0 {
				fmt.Fprintf(b, "  Exact rank: #%d\n", record.Rank)
			}
			if len(record.Websites) > 0 {
				fmt.Fprintf(b, "  Website: %s\n", record.Websites[0])
			}
		case DexTrading:
			fmt.Fprintf(b, "- DEX trading data: %d pairs, 24h volume %s, 7d volume %s, total liquidity %s\n",
				record.TotalPairs, fmtMoney(record.Total24hVolume, 2), fmtMoney(record.Total7dVolume, 2), fmtMoney(record.TotalLiquidity, 2))
			for i, pair := range record.TopPairs {
				if i == 3 {
					break
				}
				fmt.Fprintf(b, "  %d. %s: 24h volume %s, 7d volume %s, liquidity %s\n",
					i+1, pair.TokenPair, fmtMoney(pair.OneDayVolume, 2), fmtMoney(pair.SevenDayVolume, 2), fmtMoney(pair.UsdLiquidity, 2))
			}
		}
	}
}

func writeSupplementaryData(b *strings.Builder, merged *MergedDataset) {
	if len(merged.Supplementary) == 0 {
		return
	}
	b.WriteString("\nSupplementary data:\n")

	keys := make([]string, 0, len(merged.Supplementary))
	for key := range merged.Supplementary {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch record := merged.Supplementary[key].(type) {
		case GlobalMetrics:
			fmt.Fprintf(b, "- Global metrics: total market cap %s, 24h volume %s, bitcoin dominance %.2f%%, %d active cryptocurrencies\n",
				fmtMoney(record.TotalMarketCap, 0), fmtMoney(record.TotalVolume24h, 0), record.BitcoinDominance, record.ActiveCryptocurrencies)
		case WalletBalance:
			fmt.Fprintf(b, "- Wallet balance for %s: %.6f ETH\n", record.Address, record.BalanceEth)
		case Transactions:
			fmt.Fprintf(b, "- Transaction history for %s: %d transactions\n", record.Address, record.TotalCount)
		case AnalyticsRows:
			fmt.Fprintf(b, "- Blockchain analytics (%s): %d rows\n", record.Description, len(record.Rows))
		case TVLSection:
			b.WriteString("- TVL overview, top chains:\n")
			for i, chain := range record.TopChains {
				if i == 5 {
					break
				}
				fmt.Fprintf(b, "  %s: %s\n", chain.Name, fmtMoney(chain.TVLUSD, 0))
			}
		case StablecoinsSection:
			b.WriteString("- Stablecoins, top assets:\n")
			for i, asset := range record.TopAssets {
				if i == 5 {
					break
				}
				fmt.Fprintf(b, "  %s: %s circulating\n", asset.Symbol, fmtMoney(asset.CirculatingUSD, 0))
			}
		case DexOverviewSection:
			fmt.Fprintf(b, "- DEX overview: 24h volume %s across %d protocols\n",
				fmtMoney(record.Total24h, 0), record.ProtocolsCount)
		case FeesOverviewSection:
			fmt.Fprintf(b, "- Fees overview: 24h fees %s across %d protocols\n",
				fmtMoney(record.Total24h, 0), record.ProtocolsCount)
		case YieldsSection:
			b.WriteString("- Top yields:\n")
			for i, pool := range record.TopPools {
				if i == 5 {
					break
				}
				fmt.Fprintf(b, "  %s %s (%s): %.2f%% APY\n", pool.Project, pool.Symbol, pool.Chain, pool.APY)
			}
		case BridgesSection:
			fmt.Fprintf(b, "- Bridges: %d tracked\n", record.BridgesCount)
			for i, bridge := range record.TopBridges {
				if i == 3 {
					break
				}
				fmt.Fprintf(b, "  %s: %s previous-day volume\n", bridge.Name, fmtMoney(bridge.VolumePrevDay, 0))
			}
		case RawPayload:
			fmt.Fprintf(b, "- Additional %s data available\n", record.Provider)
		}
	}
}

func writeToolSummary(b *strings.Builder, results []ToolResult) {
	var succeeded, failed []string
	for _, result := range results {
		if result.Success {
			succeeded = append(succeeded, result.Tool)
		} else {
			failed = append(failed, fmt.Sprintf("%s (%s)", result.Tool, result.Err))
		}
	}

	b.WriteString("\nTool Results Summary:\n")
	if len(succeeded) > 0 {
		fmt.Fprintf(b, "Successful: %s\n", strings.Join(succeeded, ", "))
	}
	if len(failed) > 0 {
		fmt.Fprintf(b, "Failed: %s\n", strings.Join(failed, ", "))
	}
}

func writeFormatRequirements(b *strings.Builder, req Request, intent Intent, merged *MergedDataset) {
	b.WriteString("\n=== RESPONSE REQUIREMENTS ===\n")
	fmt.Fprintf(b, "Query Intent: %s\n", intent)
	fmt.Fprintf(b, "Format Style: %s\n", formatPreference(intent))
	fmt.Fprintf(b, "Data Completeness Score: %d%%\n", merged.Metadata.CompletenessScore)

	switch {
	case intent == IntentAnalysis || strings.Contains(strings.ToLower(req.Query), "invest"):
		b.WriteString("\nStructure the response as an investment analysis:\n")
		b.WriteString("1. Executive summary (2-3 sentences with the key recommendation)\n")
		b.WriteString("2. Market analysis (price, market cap, volume, trends)\n")
		b.WriteString("3. Network health (transaction activity, utilization, fees)\n")
		b.WriteString("4. Trading metrics (DEX volumes, liquidity, pairs)\n")
		b.WriteString("5. Investment assessment (strengths, risks, sentiment, recommendation)\n")
		b.WriteString("6. Data sources with the completeness score\n")
	case intent == IntentInformation:
		b.WriteString("\nStructure the response as an informational overview:\n")
		b.WriteString("1. Project overview (name, symbol, category, launch)\n")
		b.WriteString("2. Technology (consensus, features, use cases)\n")
		b.WriteString("3. Current metrics (price, market cap, supply)\n")
		b.WriteString("4. Ecosystem (community, partnerships, development)\n")
		b.WriteString("5. Resources (official links, documentation)\n")
	case intent == IntentMarketData:
		b.WriteString("\nStructure the response as a market report:\n")
		b.WriteString("1. Current prices with 24h and 7d changes\n")
		b.WriteString("2. Market metrics (cap, volume, rank)\n")
		b.WriteString("3. Trading analysis (DEX data, liquidity)\n")
		b.WriteString("4. Trend analysis (price movements, patterns)\n")
		b.WriteString("5. Broader market context\n")
	case intent == IntentTechnical:
		b.WriteString("\nStructure the response as a technical report:\n")
		b.WriteString("1. Methodology (data sources and analysis approach)\n")
		b.WriteString("2. Key metrics in organized lists or tables\n")
		b.WriteString("3. Trend analysis (patterns and interpretations)\n")
		b.WriteString("4. Technical insights (conclusions and implications)\n")
	default:
		b.WriteString("\nStructure the response as a comprehensive overview:\n")
		b.WriteString("1. Overview (project or market summary)\n")
		b.WriteString("2. Key metrics (most relevant data points)\n")
		b.WriteString("3. Analysis (insights from the available data)\n")
		b.WriteString("4. Recommendations (actionable conclusions)\n")
	}

	b.WriteString("\nPresentation standards:\n")
	b.WriteString("- Use headers and bullet lists; bold important values.\n")
	b.WriteString("- Format numbers with separators and signed percentages: $1,234.56, +2.45%.\n")
	b.WriteString("- Attribute each metric to its source and note any data limitations.\n")
	b.WriteString("- Use only the data provided above; never invent or round values.\n")
	b.WriteString("- Include a market-volatility disclaimer with any investment advice.\n")
}

func truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "..."
}
