package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"textgend/internal/httpapi"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr, defaultModel, preload, corsOrigins string
		maxQueue, maxWait, drain, inferTimeout   int
		maxBody                                  int64
		corsOn, noStore                          bool
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve the HTTP and WebSocket API",
		Example: "  textgend serve --addr :8080 --catalog models.yaml --preload phi_1_5_q4k",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &a.cfg
			f := cmd.Flags()
			if f.Changed("addr") {
				cfg.Addr = addr
			}
			if f.Changed("default-model") {
				cfg.DefaultModel = defaultModel
			}
			if f.Changed("max-queue-depth") {
				cfg.MaxQueueDepth = maxQueue
			}
			if f.Changed("max-wait") {
				cfg.MaxWaitSeconds = maxWait
			}
			if f.Changed("drain-timeout") {
				cfg.DrainTimeoutSeconds = drain
			}
			if f.Changed("infer-timeout") {
				cfg.InferTimeoutSeconds = inferTimeout
			}
			if f.Changed("max-body-bytes") {
				cfg.MaxBodyBytes = maxBody
			}
			if f.Changed("cors") {
				cfg.CORSEnabled = corsOn
			}
			if f.Changed("cors-origins") {
				cfg.CORSAllowedOrigins = splitCSV(corsOrigins)
			}
			return a.serve(cmd.Context(), splitCSV(preload), noStore)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080 (defaults TEXTGEND_ADDR or :8080)")
	f.StringVar(&defaultModel, "default-model", "", "Model id used when a request omits modelID")
	f.StringVar(&preload, "preload", "", "Comma separated model ids loaded at startup; /readyz waits for them")
	f.IntVar(&maxQueue, "max-queue-depth", 0, "Queued generations per model before 429 (default 32)")
	f.IntVar(&maxWait, "max-wait", 0, "Seconds a queued generation waits for its turn (default 30)")
	f.IntVar(&drain, "drain-timeout", 0, "Seconds to drain a model on unload or shutdown (default 30)")
	f.IntVar(&inferTimeout, "infer-timeout", 0, "Seconds before a generation is aborted (0=none)")
	f.Int64Var(&maxBody, "max-body-bytes", 0, "Maximum JSON request body (default 1MiB)")
	f.BoolVar(&corsOn, "cors", false, "Enable CORS")
	f.StringVar(&corsOrigins, "cors-origins", "", "Comma separated allowed origins (* for any)")
	f.BoolVar(&noStore, "no-storage", false, "Disable the /storage endpoints")
	return cmd
}

func (a *app) serve(parent context.Context, preload []string, noStore bool) error {
	cfg := a.cfg
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := a.openCatalog()
	if err != nil {
		return err
	}
	mgr, err := a.newManager()
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			a.log.Warn().Err(err).Msg("manager close")
		}
	}()
	engineCfg := httpapi.EngineConfig{
		Catalog:      cat,
		Manager:      mgr,
		DefaultModel: cfg.DefaultModel,
		Preload:      preload,
		Logger:       a.log,
	}
	if !noStore {
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		engineCfg.Store = store
	}
	engine := httpapi.NewEngine(engineCfg)

	httpapi.SetLogger(a.log)
	httpapi.SetDefaultLogLevel(cfg.LogLevel)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetInferTimeoutSeconds(int64(cfg.InferTimeoutSeconds))
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, nil, nil)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(engine),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", cfg.Addr).Int("models", len(cat.IDs())).Msg("textgend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	if len(preload) > 0 {
		go func() {
			if err := engine.Preload(ctx); err == nil {
				a.log.Info().Strs("models", preload).Msg("preload complete")
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	// Graceful shutdown (Ctrl+C / SIGTERM)
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
