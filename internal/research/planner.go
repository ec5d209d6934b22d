package research

import (
	"fmt"
	"strings"
)

// SampleAddress is substituted when an analysis-flavored query needs on-chain
// data but no address was supplied (the Ethereum Foundation wallet).
const SampleAddress = "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe"

var (
	duneKeywords = []string{
		"bitcoin", "btc", "ethereum", "eth", "analysis", "investment",
		"trading", "volume", "dex", "swap", "whale", "performance", "trend",
	}
	llamaKeywords = []string{
		"tvl", "protocol", "defi", "stablecoin", "apy", "yield",
		"fees", "revenue", "bridge",
	}
	etherscanKeywords = []string{
		"bitcoin", "btc", "ethereum", "eth", "analysis", "investment",
		"transaction", "network", "activity",
	}
	sampleAddressKeywords = []string{
		"bitcoin", "btc", "ethereum", "eth", "analysis", "investment",
	}
	investmentKeywords = []string{
		"invest", "investment", "analysis", "should i", "good idea", "recommend",
	}
)

// PlanResult is the planner's tool selection. Address carries the effective
// address for the run: the request's own, or the sample substitute.
type PlanResult struct {
	Tools   []string
	Steps   []string
	Address string
}

func (p PlanResult) hasTool(name string) bool {
	for _, tool := range p.Tools {
		if tool == name {
			return true
		}
	}
	return false
}

func (p *PlanResult) addTool(name, step string) {
	p.Tools = append(p.Tools, name)
	p.Steps = append(p.Steps, step)
}

// Plan decides which adapters to invoke for a request. Pure given the
// request and intent; selection order is rule order, though the dispatcher
// is free to execute in any order.
func Plan(req Request, intent Intent) PlanResult {
	lower := strings.ToLower(req.Query)
	plan := PlanResult{
		Steps: []string{
			fmt.Sprintf("Analyzing query and planning approach (Intent: %s)", intent),
			"Query analysis completed",
		},
		Address: strings.TrimSpace(req.Address),
	}

	// CoinMarketCap runs on every query.
	plan.addTool(ToolCoinMarketCap, "Selected CoinMarketCap for market data and price analysis")

	if containsAny(lower, duneKeywords...) {
		plan.addTool(ToolDuneAnalytics, "Selected Dune Analytics for blockchain metrics and trading data")
	}

	if containsAny(lower, llamaKeywords...) {
		plan.addTool(ToolDefiLlama, "Selected DefiLlama for TVL, yields, stablecoins, fees, bridges, prices")
	}

	if plan.Address != "" || containsAny(lower, etherscanKeywords...) {
		if plan.Address == "" && containsAny(lower, sampleAddressKeywords...) {
			plan.Address = SampleAddress
			plan.Steps = append(plan.Steps, "Using sample Ethereum address for on-chain analysis demonstration")
		}
		if plan.Address != "" {
			plan.addTool(ToolEtherscan, "Selected Etherscan for on-chain transaction analysis")
		}
	}

	// Investment-flavored queries consult every provider.
	if containsAny(lower, investmentKeywords...) {
		if !plan.hasTool(ToolDuneAnalytics) {
			plan.addTool(ToolDuneAnalytics, "Added Dune Analytics for comprehensive investment analysis")
		}
		if !plan.hasTool(ToolDefiLlama) {
			plan.addTool(ToolDefiLlama, "Added DefiLlama for protocol TVL and yields context")
		}
		if !plan.hasTool(ToolEtherscan) {
			if plan.Address == "" {
				plan.Address = SampleAddress
			}
			plan.addTool(ToolEtherscan, "Added Etherscan for blockchain network health analysis")
		}
	}

	// Never plan fewer than two tools.
	if len(plan.Tools) < 2 {
		if !plan.hasTool(ToolDuneAnalytics) {
			plan.addTool(ToolDuneAnalytics, "Added Dune Analytics for comprehensive data coverage")
		}
		if !plan.hasTool(ToolDefiLlama) {
			plan.addTool(ToolDefiLlama, "Added DefiLlama for broader DeFi coverage")
		}
	}

	plan.Steps = append(plan.Steps, fmt.Sprintf("Final tool selection: %d tools for maximum data completeness", len(plan.Tools)))
	return plan
}
