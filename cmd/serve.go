package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tempscore-cli/internal/model"
	"github.com/sells-group/tempscore-cli/internal/provider"
	"github.com/sells-group/tempscore-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		prov, cleanup, err := initProvider(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(prov, st, cfg.Server.APIKey),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the API routes. Split out from serveCmd so handler
// tests can drive the mux directly. An empty apiKey disables auth.
func newRouter(prov provider.Provider, st store.Store, apiKey string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(bearerAuth(apiKey))
		r.Post("/score", handleScore(prov, st))
		r.Get("/runs", handleListRuns(st))
		r.Get("/runs/{id}", handleGetRun(st))
	})

	return r
}

// bearerAuth rejects requests without the expected bearer token. A noop
// when no key is configured.
func bearerAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey != "" && r.Header.Get("Authorization") != "Bearer "+apiKey {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// scoreRequest is the POST /v1/score body. Unset scoring parameters fall
// back to the configured defaults.
type scoreRequest struct {
	Portfolio []struct {
		CompanyID       string  `json:"company_id"`
		InvestmentValue float64 `json:"investment_value"`
	} `json:"portfolio"`

	Method        string   `json:"method,omitempty"`
	Grouping      []string `json:"grouping,omitempty"`
	TimeFrames    []string `json:"time_frames,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
	ModelVariant  int      `json:"model_variant,omitempty"`
	FallbackScore float64  `json:"fallback_score,omitempty"`
}

func handleScore(prov provider.Provider, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Portfolio) == 0 {
			writeError(w, http.StatusBadRequest, "portfolio is required")
			return
		}

		portfolio := make([]model.Position, 0, len(req.Portfolio))
		seen := make(map[string]bool)
		for _, p := range req.Portfolio {
			if p.CompanyID == "" {
				writeError(w, http.StatusBadRequest, "portfolio positions need a company_id")
				return
			}
			if seen[p.CompanyID] {
				writeError(w, http.StatusBadRequest, "duplicate company_id "+p.CompanyID)
				return
			}
			seen[p.CompanyID] = true
			portfolio = append(portfolio, model.Position{CompanyID: p.CompanyID, Investment: p.InvestmentValue})
		}

		params := requestParams(req)

		run, err := st.CreateRun(r.Context(), params)
		if err != nil {
			zap.L().Error("serve: create run", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "persist run")
			return
		}

		result, err := executeScore(r.Context(), prov, portfolio, params)
		if err != nil {
			_ = st.FailRun(r.Context(), run.ID, err.Error())
			zap.L().Error("serve: score failed", zap.String("run_id", run.ID), zap.Error(err))
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		if err := st.CompleteRun(r.Context(), run.ID, result); err != nil {
			zap.L().Error("serve: complete run", zap.String("run_id", run.ID), zap.Error(err))
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"run_id": run.ID,
			"result": result,
		})
	}
}

// requestParams merges a score request with configured defaults.
func requestParams(req scoreRequest) store.RunParams {
	params := store.RunParams{
		Source:        cfg.Provider.Source,
		Method:        model.AggregationMethod(cfg.Score.Method),
		Grouping:      cfg.Score.Grouping,
		ModelVariant:  cfg.Score.ModelVariant,
		FallbackScore: cfg.Score.FallbackScore,
	}
	for _, tf := range cfg.Score.TimeFrames {
		params.TimeFrames = append(params.TimeFrames, model.TimeFrame(tf))
	}
	for _, s := range cfg.Score.Scopes {
		params.Scopes = append(params.Scopes, model.Scope(s))
	}

	if req.Method != "" {
		params.Method = model.AggregationMethod(req.Method)
	}
	if req.Grouping != nil {
		params.Grouping = req.Grouping
	}
	if req.TimeFrames != nil {
		params.TimeFrames = nil
		for _, tf := range req.TimeFrames {
			params.TimeFrames = append(params.TimeFrames, model.TimeFrame(tf))
		}
	}
	if req.Scopes != nil {
		params.Scopes = nil
		for _, s := range req.Scopes {
			params.Scopes = append(params.Scopes, model.Scope(s))
		}
	}
	if req.ModelVariant != 0 {
		params.ModelVariant = req.ModelVariant
	}
	if req.FallbackScore != 0 {
		params.FallbackScore = req.FallbackScore
	}
	return params
}

func handleListRuns(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.RunFilter{
			Status: store.RunStatus(r.URL.Query().Get("status")),
			Method: model.AggregationMethod(r.URL.Query().Get("method")),
		}

		runs, err := st.ListRuns(r.Context(), filter)
		if err != nil {
			zap.L().Error("serve: list runs", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list runs")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	}
}

func handleGetRun(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
