package research

import (
	"strings"
	"testing"
)

func TestBuildSynthesisPromptIncludesExactValues(t *testing.T) {
	merged := Merge([]ToolResult{
		okResult(ToolCoinMarketCap, MarketQuotes{Quotes: []MarketQuote{btcQuote()}}),
	}, IntentMarketData)
	canonical := Canonical(&merged)

	prompt := BuildSynthesisPrompt(Request{Query: "bitcoin price", TimeRange: "7d"},
		IntentMarketData, nil, &merged, canonical, "")

	if !strings.Contains(prompt, "$64,250.12") {
		t.Fatalf("expected exact price in prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Use these numbers exactly") {
		t.Fatal("expected exact-value directive in prompt")
	}
	if !strings.Contains(prompt, "Use coinmarketcap for market data") {
		t.Fatal("expected canonical market directive in prompt")
	}
	if !strings.Contains(prompt, "Time Range: 7d") {
		t.Fatal("expected time range in prompt")
	}
}

func TestBuildSynthesisPromptIsDeterministic(t *testing.T) {
	merged := Merge([]ToolResult{
		okResult(ToolCoinMarketCap, MarketQuotes{Quotes: []MarketQuote{btcQuote(), ethQuote()}}),
		okResult(ToolDuneAnalytics, DexTrading{TotalPairs: 2, Total24hVolume: 1600, TopPairs: []DexPairStat{{TokenPair: "WETH-USDC", OneDayVolume: 1000}}}),
		okResult(ToolCoinMarketCap, GlobalMetrics{TotalMarketCap: 2.3e12, BitcoinDominance: 54.2}),
	}, IntentAnalysis)
	canonical := Canonical(&merged)
	req := Request{Query: "analyze ethereum", TimeRange: "30d"}

	first := BuildSynthesisPrompt(req, IntentAnalysis, nil, &merged, canonical, "")
	second := BuildSynthesisPrompt(req, IntentAnalysis, nil, &merged, canonical, "")

	if first != second {
		t.Fatal("prompt must be identical for the same dataset")
	}
}

func TestBuildSynthesisPromptReferencesHistory(t *testing.T) {
	merged := Merge(nil, IntentGeneral)

	withHistory := BuildSynthesisPrompt(Request{Query: "and solana?", TimeRange: "7d"},
		IntentGeneral, nil, &merged, nil, "User: bitcoin price\nAssistant: BTC trades at $64,250.12")
	if !strings.Contains(withHistory, "=== CONVERSATION HISTORY ===") {
		t.Fatal("expected history block when a summary is present")
	}
	if !strings.Contains(withHistory, "bitcoin price") {
		t.Fatal("expected history content in prompt")
	}

	without := BuildSynthesisPrompt(Request{Query: "and solana?", TimeRange: "7d"},
		IntentGeneral, nil, &merged, nil, "")
	if strings.Contains(without, "CONVERSATION HISTORY") {
		t.Fatal("history block must be absent without a summary")
	}
}

func TestBuildSynthesisPromptVariesFormatByIntent(t *testing.T) {
	merged := Merge(nil, IntentMarketData)

	market := BuildSynthesisPrompt(Request{Query: "eth price", TimeRange: "7d"},
		IntentMarketData, nil, &merged, nil, "")
	if !strings.Contains(market, "market report") {
		t.Fatal("expected market report structure")
	}

	info := BuildSynthesisPrompt(Request{Query: "tell me about eth", TimeRange: "7d"},
		IntentInformation, nil, &merged, nil, "")
	if !strings.Contains(info, "informational overview") {
		t.Fatal("expected informational overview structure")
	}
	if strings.Contains(info, "investment analysis") {
		t.Fatal("information intent must not demand investment structure")
	}

	invest := BuildSynthesisPrompt(Request{Query: "should I invest in eth", TimeRange: "7d"},
		IntentAnalysis, nil, &merged, nil, "")
	if !strings.Contains(invest, "investment analysis") {
		t.Fatal("expected investment structure for analysis intent")
	}
}

func TestBuildSynthesisPromptSummarisesToolFailures(t *testing.T) {
	merged := Merge([]ToolResult{
		okResult(ToolCoinMarketCap, MarketQuotes{Quotes: []MarketQuote{btcQuote()}}),
	}, IntentMarketData)

	results := []ToolResult{
		okResult(ToolCoinMarketCap, MarketQuotes{Quotes: []MarketQuote{btcQuote()}}),
		{Tool: ToolDuneAnalytics, Success: false, Err: "rate limited"},
	}

	prompt := BuildSynthesisPrompt(Request{Query: "bitcoin price", TimeRange: "7d"},
		IntentMarketData, results, &merged, nil, "")

	if !strings.Contains(prompt, "Successful: coinmarketcap") {
		t.Fatal("expected successful tool listing")
	}
	if !strings.Contains(prompt, "dune_analytics (rate limited)") {
		t.Fatal("expected failed tool listing with reason")
	}
}

func TestFormatPreference(t *testing.T) {
	cases := []struct {
		intent Intent
		want   string
	}{
		{IntentAnalysis, "analytical_report"},
		{IntentInformation, "informational_overview"},
		{IntentMarketData, "market_report"},
		{IntentComparison, "comparative_analysis"},
		{IntentTechnical, "technical_report"},
		{IntentGeneral, "standard"},
	}

	for _, tc := range cases {
		if got := formatPreference(tc.intent); got != tc.want {
			t.Fatalf("intent %s: expected %q, got %q", tc.intent, tc.want, got)
		}
	}
}
