// Copyright 2026 The tdengine-backup-engine Authors
// This file is part of tdengine-backup-engine.
//
// tdengine-backup-engine is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// tdengine-backup-engine is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with tdengine-backup-engine. If not, see <http://www.gnu.org/licenses/>.

// Command backupd runs the incremental backup acceleration engine as a
// standalone daemon: it builds the Bitmap Engine, interceptor and backup
// coordinator from a config file, serves the /healthz, /stats and
// /metrics debug surface, and persists the engine's snapshot on exit.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ZhangZui123/tdengine-backup-engine/internal/backupcoord"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/config"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/engine"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/httpapi"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/interceptor"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/logging"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/metrics"
)

var (
	configPath string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:     "backupd",
	Short:   "Run the incremental backup acceleration daemon.",
	Example: "backupd --config=backupd.yaml --listen=:8080",
	RunE:    runDaemon,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "backupd.yaml", "path to the YAML/JSON configuration file")
	rootCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "address the debug HTTP server listens on")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()

	cfg, err := config.Load(fs, configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	eng := engine.New(cfg.Engine.ToEngineConfig())
	if cfg.Engine.PersistenceEnabled && cfg.Engine.PersistencePath != "" {
		if err := eng.LoadSnapshot(cfg.Engine.PersistencePath); err != nil {
			logger.Warn("no existing snapshot to resume from", logging.Error(err))
		}
	}

	ic := interceptor.New(eng)
	icCfg := cfg.Interceptor.ToInterceptorConfig(500 * time.Millisecond)
	if err := ic.Init(icCfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if icCfg.Enabled {
		if err := ic.Start(ctx); err != nil {
			return err
		}
	}

	coordCfg, err := cfg.Coordinator.ToCoordinatorConfig()
	if err != nil {
		return err
	}
	errLog := backupcoord.NewErrorLog(fs, coordCfg.ErrorStorePath, coordCfg.ErrorBufferSize, coordCfg.EnableErrorLogging)
	coord := backupcoord.New(eng, coordCfg, errLog)

	reg := prometheus.DefaultRegisterer
	m := metrics.New(reg)
	st := eng.GetStats()
	m.ObserveEngineStats(st.Dirty, st.New, st.Deleted)

	server := httpapi.New(eng, ic, coord)
	httpSrv := &http.Server{Addr: listenAddr, Handler: server.Router()}

	go func() {
		logger.Info("serving debug http api", logging.String("addr", listenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", logging.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = ic.Destroy()

	if cfg.Engine.PersistenceEnabled && cfg.Engine.PersistencePath != "" {
		if err := eng.SaveSnapshot(fs, cfg.Engine.PersistencePath); err != nil {
			logger.Error("failed to persist snapshot on shutdown", logging.Error(err))
			return err
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
