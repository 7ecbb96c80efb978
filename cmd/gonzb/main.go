package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datallboy/gonzb/internal/api"
	"github.com/datallboy/gonzb/internal/app"
	"github.com/datallboy/gonzb/internal/infra/config"
	"github.com/datallboy/gonzb/internal/infra/logger"
	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	childName    string
	snapshotPath string
)

var rootCmd = &cobra.Command{
	Use:   "gonzb",
	Short: "gonzb is a Usenet/BitTorrent acquisition engine",
	Long:  "gonzb hunts NZBs and torrents across indexers, scores candidates against a profile, and submits the winner to a download client.",
	Run: func(cmd *cobra.Command, args []string) {
		if childName != "" {
			runChild()
			return
		}
		runSupervisor()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	// --child is the entrypoint ipc.Proxy execs os.Args[0] with (§4.7);
	// the default supervisor mode runs both engines in-process instead.
	// The child process only runs one engine's loop over stdio, never the
	// HTTP surface or the orchestrator.
	rootCmd.Flags().StringVar(&childName, "child", "", "run as a supervised child engine (\"nzb\" or \"torrent\")")
	rootCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "child engine snapshot file path (required with --child)")
}

func runSupervisor() {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	lg, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}

	ctx, err := app.NewSupervisorContext(cfg, lg)
	if err != nil {
		lg.Fatal("startup failed: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sigChan
		lg.Info("interrupt received, shutting down")
		cancel()
	}()

	go ctx.Poller.Run(runCtx)

	e := echo.New()
	api.RegisterRoutes(e, ctx)

	go func() {
		addr := ":" + cfg.Port
		lg.Info("diagnostics surface listening on %s", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			lg.Error("http server stopped: %v", err)
		}
	}()

	<-runCtx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	e.Shutdown(shutdownCtx)
	ctx.Close()
}

func runChild() {
	if snapshotPath == "" {
		fmt.Println("Error: --snapshot is required with --child")
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	lg, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), false)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}

	loop, err := app.NewChildEngine(cfg, lg, childName, snapshotPath)
	if err != nil {
		lg.Fatal("child startup failed: %v", err)
	}

	loop.Run(os.Stdin, os.Stdout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
