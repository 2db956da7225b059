package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tender-cli/internal/acquire"
	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/internal/pipeline"
	"github.com/sells-group/tender-cli/internal/resilience"
	"github.com/sells-group/tender-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for tender analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		api := newAPI(ctx, env.Store, env.Pipeline, env.lookup())

		if cfg.Monitoring.WebhookURL != "" {
			go newChecker(env.Store).Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		api.wait()
		return nil
	},
}

// tenderRunner runs the analysis pipeline for one tender.
type tenderRunner interface {
	Run(ctx context.Context, key string, opts ...acquire.Option) (*pipeline.RunResult, error)
}

// analyzeRequest is the optional body of POST /tenders/{reg}/analyze.
type analyzeRequest struct {
	URL    string `json:"url" validate:"omitempty,url"`
	Filter string `json:"filter" validate:"omitempty,max=200"`
}

type tenderView struct {
	*model.TenderRecord
	Stage model.Stage `json:"stage"`
}

type api struct {
	ctx      context.Context
	store    store.Store
	runner   tenderRunner
	lookup   tenderLookup
	validate *validator.Validate

	mu       sync.Mutex
	inflight map[string]bool
	wg       sync.WaitGroup
}

// newAPI creates the HTTP API. Background analyses run on ctx. runner and
// lookup may be nil.
func newAPI(ctx context.Context, st store.Store, runner tenderRunner, lookup tenderLookup) *api {
	return &api{
		ctx:      ctx,
		store:    st,
		runner:   runner,
		lookup:   lookup,
		validate: validator.New(),
		inflight: make(map[string]bool),
	}
}

func (a *api) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/tenders/{reg}", func(r chi.Router) {
		r.Get("/", a.handleGetTender)
		r.Post("/analyze", a.handleAnalyze)
		r.Get("/report", a.handleReport)
	})
	return r
}

// wait blocks until background analyses have returned.
func (a *api) wait() { a.wg.Wait() }

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleGetTender(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tenderView{TenderRecord: rec, Stage: rec.Stage()})
}

func (a *api) handleReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.load(w, r)
	if !ok {
		return
	}
	if !rec.IsProcessed || rec.FinalReport == nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "report not ready",
			"stage": string(rec.Stage()),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"reg_number": rec.RegNumber,
		"report":     pipeline.ComposeReport(*rec.FinalReport, rec.ProductAnalyses()),
	})
}

func (a *api) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	reg := chi.URLParam(r, "reg")

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := resolveTender(r.Context(), a.store, a.lookup, reg, req.URL); err != nil {
		if errors.Is(err, resilience.ErrTenderNotFound) {
			writeError(w, http.StatusNotFound, resilience.MsgTenderNotFound)
			return
		}
		zap.L().Error("resolve tender", zap.String("reg_number", reg), zap.Error(err))
		writeError(w, http.StatusInternalServerError, resilience.UserMessage(err))
		return
	}

	if !a.claim(reg) {
		writeError(w, http.StatusConflict, "analysis already running")
		return
	}

	var opts []acquire.Option
	if req.Filter != "" {
		opts = append(opts, acquire.WithNameFilter(req.Filter))
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.release(reg)
		if a.runner == nil {
			return
		}
		res, err := a.runner.Run(a.ctx, reg, opts...)
		if err != nil {
			zap.L().Error("api analysis failed",
				zap.String("reg_number", reg),
				zap.String("reason", resilience.UserMessage(err)),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("api analysis complete",
			zap.String("reg_number", reg),
			zap.String("stage", string(res.Stage)),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"reg_number": reg,
	})
}

func (a *api) load(w http.ResponseWriter, r *http.Request) (*model.TenderRecord, bool) {
	reg := chi.URLParam(r, "reg")
	rec, err := a.store.FindByKey(r.Context(), reg)
	if err != nil {
		zap.L().Error("load tender", zap.String("reg_number", reg), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return nil, false
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, resilience.MsgTenderNotFound)
		return nil, false
	}
	return rec, true
}

func (a *api) claim(reg string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inflight[reg] {
		return false
	}
	a.inflight[reg] = true
	return true
}

func (a *api) release(reg string) {
	a.mu.Lock()
	delete(a.inflight, reg)
	a.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
