// Package defillama calls the public DefiLlama APIs for DeFi ecosystem data.
// None of the routes require an API key.
package defillama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"web3research/backend/internal/config"
)

const (
	maxErrorBodyBytes = 8 << 10
	topEntriesLimit   = 10
)

// APIError reports a non-2xx response from a DefiLlama route.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("defillama returned %d: %s", e.StatusCode, e.Body)
}

// ChainTVL is one chain's total value locked in USD.
type ChainTVL struct {
	Name   string  `json:"name"`
	TVLUSD float64 `json:"tvl_usd"`
}

// TVLOverview summarises value locked across chains.
type TVLOverview struct {
	ChainsCount int        `json:"chains_count"`
	TopChains   []ChainTVL `json:"top_chains"`
}

// StablecoinAsset is one pegged asset and its circulating value.
type StablecoinAsset struct {
	Name           string  `json:"name"`
	Symbol         string  `json:"symbol"`
	CirculatingUSD float64 `json:"circulating_usd"`
}

// StablecoinsOverview summarises the stablecoin market.
type StablecoinsOverview struct {
	AssetsCount int               `json:"assets_count"`
	TopAssets   []StablecoinAsset `json:"top_assets"`
}

// Protocol is one protocol row from a volume or fees overview.
type Protocol struct {
	Name     string  `json:"name"`
	Total24h float64 `json:"total_24h"`
	Change1d float64 `json:"change_1d"`
}

// ProtocolsOverview summarises DEX volume or protocol fees. The same shape
// serves both routes.
type ProtocolsOverview struct {
	ProtocolsCount int        `json:"protocols_count"`
	Total24h       float64    `json:"total_24h"`
	TopProtocols   []Protocol `json:"top_protocols"`
}

// YieldPool is one pool from the yields API.
type YieldPool struct {
	Project string  `json:"project"`
	Chain   string  `json:"chain"`
	Symbol  string  `json:"symbol"`
	APY     float64 `json:"apy"`
}

// YieldsOverview summarises yield opportunities.
type YieldsOverview struct {
	PoolsCount int         `json:"pools_count"`
	TopPools   []YieldPool `json:"top_pools"`
}

// Bridge is one cross-chain bridge and its previous-day volume.
type Bridge struct {
	Name          string  `json:"name"`
	VolumePrevDay float64 `json:"volume_prev_day"`
}

// BridgesOverview summarises cross-chain bridge activity.
type BridgesOverview struct {
	BridgesCount int      `json:"bridges_count"`
	TopBridges   []Bridge `json:"top_bridges"`
}

// Overview bundles the six DefiLlama summaries. Sections whose route failed
// are left zero-valued.
type Overview struct {
	Chain       string              `json:"chain,omitempty"`
	TVL         TVLOverview         `json:"tvl"`
	Stablecoins StablecoinsOverview `json:"stablecoins"`
	Dex         ProtocolsOverview   `json:"dex"`
	Fees        ProtocolsOverview   `json:"fees"`
	Yields      YieldsOverview      `json:"yields"`
	Bridges     BridgesOverview     `json:"bridges"`
}

// Client calls the DefiLlama public APIs, which are spread over several
// hosts.
type Client struct {
	baseURL        string
	yieldsURL      string
	stablecoinsURL string
	bridgesURL     string
	httpClient     *http.Client
}

// NewClient builds a DefiLlama client from configuration. Passing a nil
// httpClient selects http.DefaultClient.
func NewClient(cfg config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:        cfg.LlamaBaseURL,
		yieldsURL:      cfg.LlamaYieldsURL,
		stablecoinsURL: cfg.LlamaStablecoinsURL,
		bridgesURL:     cfg.LlamaBridgesURL,
		httpClient:     httpClient,
	}
}

// Overview fetches the six summary routes concurrently. An optional chain
// scopes the DEX and fees overviews. A failed route leaves its section
// zero-valued; Overview returns an error only when every route failed.
func (c *Client) Overview(ctx context.Context, chain string) (Overview, error) {
	chain = strings.ToLower(strings.TrimSpace(chain))

	var (
		overview Overview
		wg       sync.WaitGroup
		errs     [6]error
	)
	overview.Chain = chain

	wg.Add(6)
	go func() {
		defer wg.Done()
		overview.TVL, errs[0] = c.chainTVLs(ctx)
	}()
	go func() {
		defer wg.Done()
		overview.Stablecoins, errs[1] = c.stablecoins(ctx)
	}()
	go func() {
		defer wg.Done()
		overview.Dex, errs[2] = c.protocolsOverview(ctx, "dexs", chain)
	}()
	go func() {
		defer wg.Done()
		overview.Fees, errs[3] = c.protocolsOverview(ctx, "fees", chain)
	}()
	go func() {
		defer wg.Done()
		overview.Yields, errs[4] = c.yieldPools(ctx)
	}()
	go func() {
		defer wg.Done()
		overview.Bridges, errs[5] = c.bridges(ctx)
	}()
	wg.Wait()

	for _, err := range errs {
		if err == nil {
			return overview, nil
		}
	}
	return Overview{}, fmt.Errorf("all defillama routes failed: %w", errs[0])
}

func (c *Client) chainTVLs(ctx context.Context) (TVLOverview, error) {
	var chains []struct {
		Name string  `json:"name"`
		TVL  float64 `json:"tvl"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/v2/chains", nil, &chains); err != nil {
		return TVLOverview{}, err
	}

	out := TVLOverview{ChainsCount: len(chains)}
	for _, chain := range chains {
		out.TopChains = append(out.TopChains, ChainTVL{Name: chain.Name, TVLUSD: chain.TVL})
	}
	sort.SliceStable(out.TopChains, func(i, j int) bool {
		return out.TopChains[i].TVLUSD > out.TopChains[j].TVLUSD
	})
	if len(out.TopChains) > topEntriesLimit {
		out.TopChains = out.TopChains[:topEntriesLimit]
	}
	return out, nil
}

func (c *Client) stablecoins(ctx context.Context) (StablecoinsOverview, error) {
	var parsed struct {
		PeggedAssets []struct {
			Name        string `json:"name"`
			Symbol      string `json:"symbol"`
			Circulating struct {
				PeggedUSD float64 `json:"peggedUSD"`
			} `json:"circulating"`
		} `json:"peggedAssets"`
	}
	if err := c.getJSON(ctx, c.stablecoinsURL+"/stablecoins", nil, &parsed); err != nil {
		return StablecoinsOverview{}, err
	}

	out := StablecoinsOverview{AssetsCount: len(parsed.PeggedAssets)}
	for _, asset := range parsed.PeggedAssets {
		out.TopAssets = append(out.TopAssets, StablecoinAsset{
			Name:           asset.Name,
			Symbol:         asset.Symbol,
			CirculatingUSD: asset.Circulating.PeggedUSD,
		})
	}
	sort.SliceStable(out.TopAssets, func(i, j int) bool {
		return out.TopAssets[i].CirculatingUSD > out.TopAssets[j].CirculatingUSD
	})
	if len(out.TopAssets) > topEntriesLimit {
		out.TopAssets = out.TopAssets[:topEntriesLimit]
	}
	return out, nil
}

// protocolsOverview serves both /overview/dexs and /overview/fees, which
// share a response shape. An optional chain narrows the overview.
func (c *Client) protocolsOverview(ctx context.Context, kind, chain string) (ProtocolsOverview, error) {
	route := c.baseURL + "/overview/" + kind
	if chain != "" {
		route += "/" + url.PathEscape(chain)
	}
	query := url.Values{}
	query.Set("excludeTotalDataChart", "true")
	query.Set("excludeTotalDataChartBreakdown", "true")

	var parsed struct {
		Total24h  float64 `json:"total24h"`
		Protocols []struct {
			Name     string  `json:"name"`
			Total24h float64 `json:"total24h"`
			Change1d float64 `json:"change_1d"`
		} `json:"protocols"`
	}
	if err := c.getJSON(ctx, route, query, &parsed); err != nil {
		return ProtocolsOverview{}, err
	}

	out := ProtocolsOverview{
		ProtocolsCount: len(parsed.Protocols),
		Total24h:       parsed.Total24h,
	}
	for _, protocol := range parsed.Protocols {
		if len(out.TopProtocols) == topEntriesLimit {
			break
		}
		out.TopProtocols = append(out.TopProtocols, Protocol{
			Name:     protocol.Name,
			Total24h: protocol.Total24h,
			Change1d: protocol.Change1d,
		})
	}
	return out, nil
}

func (c *Client) yieldPools(ctx context.Context) (YieldsOverview, error) {
	var parsed struct {
		Data []struct {
			Project string  `json:"project"`
			Chain   string  `json:"chain"`
			Symbol  string  `json:"symbol"`
			APY     float64 `json:"apy"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, c.yieldsURL+"/pools", nil, &parsed); err != nil {
		return YieldsOverview{}, err
	}

	out := YieldsOverview{PoolsCount: len(parsed.Data)}
	for _, pool := range parsed.Data {
		out.TopPools = append(out.TopPools, YieldPool{
			Project: pool.Project,
			Chain:   pool.Chain,
			Symbol:  pool.Symbol,
			APY:     pool.APY,
		})
	}
	sort.SliceStable(out.TopPools, func(i, j int) bool {
		return out.TopPools[i].APY > out.TopPools[j].APY
	})
	if len(out.TopPools) > topEntriesLimit {
		out.TopPools = out.TopPools[:topEntriesLimit]
	}
	return out, nil
}

func (c *Client) bridges(ctx context.Context) (BridgesOverview, error) {
	var parsed struct {
		Bridges []struct {
			DisplayName   string  `json:"displayName"`
			Name          string  `json:"name"`
			VolumePrevDay float64 `json:"volumePrevDay"`
		} `json:"bridges"`
	}
	if err := c.getJSON(ctx, c.bridgesURL+"/bridges", nil, &parsed); err != nil {
		return BridgesOverview{}, err
	}

	out := BridgesOverview{BridgesCount: len(parsed.Bridges)}
	for _, bridge := range parsed.Bridges {
		if len(out.TopBridges) == topEntriesLimit {
			break
		}
		name := bridge.DisplayName
		if name == "" {
			name = bridge.Name
		}
		out.TopBridges = append(out.TopBridges, Bridge{
			Name:          name,
			VolumePrevDay: bridge.VolumePrevDay,
		})
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building defillama request: %w", err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling defillama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding defillama response: %w", err)
	}
	return nil
}
