package httpapi

import (
	"database/sql"
	"net/http"

	"web3research/backend/internal/coinmarketcap"
	"web3research/backend/internal/config"
	"web3research/backend/internal/defillama"
	"web3research/backend/internal/dune"
	"web3research/backend/internal/etherscan"
	"web3research/backend/internal/openrouter"
	"web3research/backend/internal/research"
	"web3research/backend/internal/runlog"
	"web3research/backend/internal/session"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(cfg config.Config, database *sql.DB) http.Handler {
	sessions := session.NewManager(cfg.MaxSessions, cfg.SessionTimeout, nil)
	adapters := map[string]research.Adapter{
		research.ToolCoinMarketCap: research.NewCoinMarketCapAdapter(coinmarketcap.NewClient(cfg, nil)),
		research.ToolDuneAnalytics: research.NewDuneAdapter(dune.NewClient(cfg, nil)),
		research.ToolEtherscan:     research.NewEtherscanAdapter(etherscan.NewClient(cfg, nil)),
		research.ToolDefiLlama:     research.NewDefiLlamaAdapter(defillama.NewClient(cfg, nil)),
	}
	responder := NewOpenRouterResponder(openrouter.NewClient(cfg, nil), cfg.OpenRouterModel)
	runs := runlog.NewStore(database)
	orch := research.NewOrchestrator(sessions, adapters, responder, research.OrchestratorConfig{
		ToolTimeout: cfg.ToolTimeout,
		Archiver:    runs,
	})
	h := NewHandler(cfg, orch, runs)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/research", h.Research)
		v1.Get("/research/runs", h.RecentRuns)
		v1.Get("/sessions", h.ListSessions)
		v1.Get("/sessions/{sessionID}", h.GetSession)
		v1.Get("/sessions/{sessionID}/summary", h.SessionSummary)
	})

	return r
}
