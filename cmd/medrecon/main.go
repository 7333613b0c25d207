package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/medrecon/pkg/api"
	"github.com/hazyhaar/medrecon/pkg/codice"
	"github.com/hazyhaar/medrecon/pkg/dedupe"
	"github.com/hazyhaar/medrecon/pkg/merge"
	"github.com/hazyhaar/medrecon/pkg/store"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"
)

type config struct {
	Addr       string        `yaml:"addr"`
	DB         string        `yaml:"db"`
	Identifier codice.Config `yaml:"identifier"`
	Scan       struct {
		YieldEvery int `yaml:"yield_every"`
	} `yaml:"scan"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	case "import":
		cmdImport(os.Args[2:])
	case "dedupe":
		cmdDedupe(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: medrecon <command>

Commands:
  serve    Start the HTTP API server
  mcp      Serve the engine tools over MCP stdio
  import   Import a CSV patient export
  dedupe   Scan the patient store for duplicate records
`)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := loadConfig(*cfgPath, logger)

	db, engine := openEngine(cfg, logger)
	defer db.Close()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.NewRouter(engine),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("medrecon listening", "addr", cfg.Addr, "db", cfg.DB)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Shutdown(context.Background())
}

func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := loadConfig(*cfgPath, logger)

	db, engine := openEngine(cfg, logger)
	defer db.Close()

	mcpSrv := server.NewMCPServer("medrecon", "1.0.0")
	api.RegisterMCPTools(mcpSrv, engine)

	logger.Info("medrecon MCP server on stdio", "db", cfg.DB)
	if err := server.ServeStdio(mcpSrv); err != nil {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}

// openEngine opens the SQLite store and wires the engine collaborators.
func openEngine(cfg config, logger *slog.Logger) (*store.DB, *api.Engine) {
	db, err := store.Open(cfg.DB)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	return db, &api.Engine{
		Patients: db.Patients,
		Visits:   db.Visits,
		Synth:    codice.New(cfg.Identifier, logger),
		Scanner: &dedupe.Scanner{
			YieldEvery: cfg.Scan.YieldEvery,
			Logger:     logger,
		},
		Locks:  merge.NewLocks(),
		Logger: logger,
	}
}

func loadConfig(path string, logger *slog.Logger) config {
	cfg := config{
		Addr: ":8430",
		DB:   "medrecon.db",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			return cfg
		}
		logger.Error("read config", "error", err)
		os.Exit(1)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("parse config", "error", err)
		os.Exit(1)
	}
	return cfg
}
