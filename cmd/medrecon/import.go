package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/medrecon/pkg/codice"
	"github.com/hazyhaar/medrecon/pkg/importer"
	"github.com/hazyhaar/medrecon/pkg/store"
)

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	format := fs.String("format", "paired-export", "import format id")
	patientsFile := fs.String("patients", "", "patients CSV file (required)")
	visitsFile := fs.String("visits", "", "visits CSV file (optional)")
	listFormats := fs.Bool("list", false, "list registered formats and exit")
	fs.Parse(args)

	if *listFormats {
		for _, a := range importer.All() {
			fmt.Printf("%-16s %s\n", a.ID(), a.Description())
		}
		return
	}
	if *patientsFile == "" {
		fmt.Fprintln(os.Stderr, "import: -patients is required")
		fs.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := loadConfig(*cfgPath, logger)

	adapter, err := importer.Get(*format)
	if err != nil {
		logger.Error("select adapter", "error", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DB)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	counters, err := adapter.Import(ctx, importer.Request{
		PatientsFile: *patientsFile,
		VisitsFile:   *visitsFile,
	}, importer.Env{
		Patients: db.Patients,
		Visits:   db.Visits,
		Synth:    codice.New(cfg.Identifier, logger),
		Logger:   logger,
	})
	if err != nil {
		logger.Error("import failed", "format", *format, "error", err)
		os.Exit(1)
	}

	fmt.Printf("patients: %d imported, %d updated, %d skipped\n",
		counters.PatientsImported, counters.PatientsUpdated, counters.PatientsSkipped)
	fmt.Printf("visits:   %d imported, %d skipped\n",
		counters.VisitsImported, counters.VisitsSkipped)
	if counters.NotesImported > 0 {
		fmt.Printf("notes:    %d imported\n", counters.NotesImported)
	}
}
