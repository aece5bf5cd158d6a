package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	var seed, warm bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), seed, warm)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "load the default chart before serving")
	cmd.Flags().BoolVar(&warm, "warm", false, "precompute cached balances while the server starts")
	return cmd
}

func runServe(ctx context.Context, seed, warm bool) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ledger, err := app.OpenLedger(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer ledger.Close()

	if seed {
		chart, err := app.DefaultChart()
		if err != nil {
			return err
		}
		report, err := app.Seed(ctx, ledger, chart)
		if err != nil {
			return err
		}
		logger.Info("seeded ledger", slog.Int("accounts", report.Accounts), slog.Int("narratives", report.Narratives), slog.Int("cost_centers", report.CostCenters))
	}

	var inspector *asynq.Inspector
	if ledger.Redis != nil {
		inspector = asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("close inspector", slog.Any("error", err))
			}
		}()
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		LedgerHandler:     accounting.NewHandler(logger, ledger.Service),
		MasterDataHandler: masterdata.NewHandler(logger, ledger.Registry),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
		RequestLog:        !cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.LedgerStore))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if warm {
		g.Go(func() error {
			n, err := ledger.Service.WarmBalances(gctx, cfg.WorkerConcurrency)
			if err != nil {
				logger.Warn("startup balance warmup", slog.Any("error", err))
				return nil
			}
			logger.Info("startup balance warmup", slog.Int("accounts", n))
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
