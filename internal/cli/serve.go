package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibemesh/vibemesh/internal/config"
	"github.com/vibemesh/vibemesh/internal/emit"
	"github.com/vibemesh/vibemesh/internal/engine"
	"github.com/vibemesh/vibemesh/internal/global"
	"github.com/vibemesh/vibemesh/internal/mesh"
	"github.com/vibemesh/vibemesh/internal/server"
	"github.com/vibemesh/vibemesh/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

var serveConfigPath string

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "config file (default ~/.vibemesh/config.toml)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := serveConfigPath
	if cfgPath == "" {
		if p, err := config.DefaultPath(); err == nil {
			cfgPath = p
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Resolve database path
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Remote backing store is optional — no base URL means fully offline.
	var remote global.RemoteClient
	timeout := time.Duration(cfg.Remote.TimeoutSeconds) * time.Second
	if cfg.Remote.BaseURL != "" {
		remote = global.NewHTTPClient(cfg.Remote.BaseURL, timeout)
	}

	repo := global.NewRepository(db, remote)
	meshCache := mesh.New(db, time.Duration(cfg.Mesh.TTLHours)*time.Hour)

	eng := engine.New(repo, db, meshCache)
	if cfg.Remote.BaseURL != "" {
		eng.SetEmitter(emit.New(emit.NewHTTPTransport(cfg.Remote.BaseURL, timeout)))
	}

	srv := server.New(db, eng, repo, meshCache, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "vibemesh serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if cfg.Remote.BaseURL != "" {
			fmt.Fprintf(os.Stderr, "  remote: %s\n", cfg.Remote.BaseURL)
		} else {
			fmt.Fprintf(os.Stderr, "  remote: none (offline mode)\n")
		}
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
