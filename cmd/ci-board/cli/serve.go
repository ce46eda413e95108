package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/davarch/ci-board/internal/application"
	"github.com/davarch/ci-board/internal/infrastructure/config"
	"github.com/davarch/ci-board/internal/infrastructure/gitlab_http"
	"github.com/davarch/ci-board/internal/infrastructure/logging"
	"github.com/davarch/ci-board/internal/infrastructure/server_http"
	"github.com/davarch/ci-board/internal/infrastructure/store_sqlite"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook + dashboard HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		log := logging.New()
		defer func() { _ = log.Sync() }()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Fatal("config", zap.Error(err))
		}

		if cfg.GitLab.Token == "" {
			log.Fatal("config", zap.String("reason", "GITLAB_TOKEN is required"))
		}

		store, err := store_sqlite.OpenAndMigrate(cfg.Database.Path)
		if err != nil {
			log.Fatal("store", zap.Error(err))
		}
		defer func() { _ = store.Close() }()

		gl := gitlab_http.New(cfg.GitLab.BaseURL, cfg.GitLab.Token, cfg.GitLab.Timeout)

		dispatcher := application.NewDispatcher(log,
			application.NewPipelineReconciler(log, store),
			application.NewJobReconciler(log, store),
		)

		api := server_http.New(log, dispatcher, store, gl)

		srv := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      api.Handler(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		watchAndReload(cfgPath, log, gl)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		log.Info("start",
			zap.String("version", version),
			zap.String("addr", cfg.Server.Addr),
			zap.String("database", cfg.Database.Path),
			zap.String("gitlab", cfg.GitLab.BaseURL),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// watchAndReload watches the config file and, after a short debounce, swaps
// the GitLab credentials on the running client. Server and database settings
// need a restart.
func watchAndReload(cfgPath string, log *zap.Logger, gl *gitlab_http.Client) {
	if cfgPath == "" {
		return
	}

	dir := filepath.Dir(cfgPath)
	base := filepath.Base(cfgPath)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify init failed", zap.Error(err))
		return
	}

	go func() {
		defer func() { _ = w.Close() }()

		var timer *time.Timer
		fire := func() {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				log.Warn("config reload failed", zap.Error(err))
				return
			}
			if cfg.GitLab.Token == "" {
				log.Warn("config reload skipped", zap.String("reason", "empty gitlab token"))
				return
			}
			gl.UpdateCredentials(cfg.GitLab.BaseURL, cfg.GitLab.Token)
			log.Info("config reloaded", zap.String("gitlab", cfg.GitLab.BaseURL))
		}

		startTimer := func() {
			if timer == nil {
				timer = time.AfterFunc(300*time.Millisecond, fire)
			} else {
				timer.Stop()
				timer.Reset(300 * time.Millisecond)
			}
		}

		if err := w.Add(dir); err != nil {
			log.Warn("fsnotify add dir failed", zap.String("dir", dir), zap.Error(err))
			return
		}

		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}

				if filepath.Base(ev.Name) != base {
					continue
				}

				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					startTimer()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("fsnotify error", zap.Error(err))
			}
		}
	}()
}
