package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/medrecon/pkg/dedupe"
	"github.com/hazyhaar/medrecon/pkg/store"
)

func cmdDedupe(args []string) {
	fs := flag.NewFlagSet("dedupe", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	progress := fs.Bool("progress", false, "report scan progress on stderr")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := loadConfig(*cfgPath, logger)

	db, err := store.Open(cfg.DB)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	patients, err := db.Patients.GetAll(ctx)
	if err != nil {
		logger.Error("load patients", "error", err)
		os.Exit(1)
	}

	scanner := &dedupe.Scanner{
		YieldEvery: cfg.Scan.YieldEvery,
		Logger:     logger,
	}
	if *progress {
		scanner.OnProgress = func(current, total int) {
			fmt.Fprintf(os.Stderr, "\rscanned %d/%d", current, total)
		}
	}

	groups, err := scanner.Scan(ctx, patients)
	if *progress {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		logger.Error("scan failed", "error", err)
		os.Exit(1)
	}

	if len(groups) == 0 {
		fmt.Printf("no duplicate clusters among %d patients\n", len(patients))
		return
	}
	fmt.Printf("%d duplicate clusters among %d patients\n\n", len(groups), len(patients))
	for _, g := range groups {
		fmt.Printf("cluster %s (%d records)\n", g.Key, len(g.Members))
		for _, p := range g.Members {
			fmt.Printf("  %s  %s %s  born %s  id %s\n",
				p.ID, p.GivenName, p.Surname, p.BirthDate, p.Identifier)
		}
		fmt.Println()
	}
}
