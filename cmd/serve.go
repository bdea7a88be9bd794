package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drivemigrate/internal/auth"
	"drivemigrate/internal/db"
	"drivemigrate/internal/drive"
	"drivemigrate/internal/engine"
	"drivemigrate/internal/logger"
	"drivemigrate/internal/model"
	"drivemigrate/internal/queue"
	"drivemigrate/internal/reporter"
	"drivemigrate/internal/server"
	"drivemigrate/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const purgeInterval = 6 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transfer daemon (API server, queue and workers)",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		gdb, err := db.Open(cfg.DBPath)
		if err != nil {
			return err
		}

		st := store.New(gdb, time.Duration(cfg.RetentionDays)*24*time.Hour)
		eng := engine.New(st)

		run := func(ctx context.Context, item model.WorkItem) error {
			src, err := drive.NewClient(ctx, item.SourceCredential)
			if err != nil {
				return fmt.Errorf("source client: %w", err)
			}

			dst, err := drive.NewClient(ctx, item.DestCredential)
			if err != nil {
				return fmt.Errorf("destination client: %w", err)
			}

			return eng.Run(ctx, item, src, dst)
		}

		q := queue.New(cfg.Workers, cfg.RetryAttempts, run, st)
		rep := reporter.New(st)

		creds, err := auth.NewFileStore()
		if err != nil {
			return err
		}

		srv := server.New(st, q, rep, creds,
			cfg.Port, time.Duration(cfg.PollIntervalSecs)*time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q.Start(ctx)
		srv.Start()
		go purgeLoop(ctx, st)

		logger.Log.Info("drivemigrate daemon ready",
			zap.Int("port", cfg.Port),
			zap.Int("workers", cfg.Workers))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Log.Info("shutting down")

		cancel()
		q.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Stop(shutdownCtx)
	},
}

func purgeLoop(ctx context.Context, st *store.Store) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.PurgeExpired()
			if err != nil {
				logger.Log.Warn("purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Log.Info("purged expired jobs", zap.Int64("count", n))
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
