package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/vpgen/internal/blackbox"
	"github.com/nvandessel/vpgen/internal/config"
	"github.com/nvandessel/vpgen/internal/constants"
	"github.com/nvandessel/vpgen/internal/docstore"
	"github.com/nvandessel/vpgen/internal/logging"
	"github.com/nvandessel/vpgen/internal/metrics"
	"github.com/nvandessel/vpgen/internal/model"
	"github.com/nvandessel/vpgen/internal/results"
	"github.com/nvandessel/vpgen/internal/store"
)

// app carries the configuration and logger shared by every command.
type app struct {
	cfg      *config.VpgenConfig
	log      *slog.Logger
	jsonOut  bool
	closeLog func() error
}

// newApp loads and validates the configuration named by --config and sets up
// logging. --log-level overrides the configured level.
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, closeLog, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, err
	}
	jsonOut, _ := cmd.Flags().GetBool("json")
	return &app{cfg: cfg, log: log, jsonOut: jsonOut, closeLog: closeLog}, nil
}

func (a *app) Close() error {
	return a.closeLog()
}

// signalContext is cancelled on the first shutdown signal.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), shutdownSignals...)
}

// openGraph opens the configured graph backend.
func (a *app) openGraph(ctx context.Context) (store.GraphStore, error) {
	switch a.cfg.Graph.Backend {
	case constants.BackendSQLite:
		gs, err := store.NewSQLiteGraphStore(a.cfg.Graph.SQLiteDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite graph: %w", err)
		}
		return gs, nil
	case constants.BackendSurreal:
		gs, err := store.NewSurrealGraphStore(ctx, a.cfg.Graph.Surreal.Store(), a.log)
		if err != nil {
			return nil, fmt.Errorf("open surreal graph: %w", err)
		}
		return gs, nil
	default:
		return store.NewInMemoryGraphStore(), nil
	}
}

// openDocuments opens S3 when a bucket is configured, the documents
// directory otherwise.
func (a *app) openDocuments(ctx context.Context) (docstore.Store, error) {
	if a.cfg.Documents.S3.Bucket != "" {
		s, err := docstore.NewS3Store(ctx, a.cfg.Documents.S3.Docstore())
		if err != nil {
			return nil, fmt.Errorf("open s3 documents: %w", err)
		}
		return s, nil
	}
	s, err := docstore.NewFileStore(a.cfg.Documents.Dir)
	if err != nil {
		return nil, fmt.Errorf("open documents: %w", err)
	}
	return s, nil
}

// openSink opens the configured evaluation sink. It returns nil when no
// sink is configured.
func (a *app) openSink(ctx context.Context, runID, modelName string) (results.Sink, error) {
	switch {
	case a.cfg.Results.PostgresDSN != "":
		s, err := results.NewPostgresSink(ctx, a.cfg.Results.PostgresDSN, runID, modelName)
		if err != nil {
			return nil, fmt.Errorf("open results database: %w", err)
		}
		return s, nil
	case a.cfg.Results.File != "":
		s, err := results.NewJSONLSink(a.cfg.Results.File, runID, modelName)
		if err != nil {
			return nil, fmt.Errorf("open results file: %w", err)
		}
		return s, nil
	}
	return nil, nil
}

// loadModel reads ref as a model document path when such a file exists, and
// as the name of a stored document otherwise. It returns the model and the
// name evaluations are recorded under.
func (a *app) loadModel(ctx context.Context, ref string) (*model.ReactionModel, string, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		m, err := model.LoadFile(ref)
		if err != nil {
			return nil, "", err
		}
		return m, strings.TrimSuffix(filepath.Base(ref), docstore.Extension), nil
	}

	docs, err := a.openDocuments(ctx)
	if err != nil {
		return nil, "", err
	}
	m, err := docstore.LoadModel(ctx, docs, ref)
	if err != nil {
		return nil, "", err
	}
	return m, ref, nil
}

// newObjective wraps m with the configured simulation settings and penalty.
// rec may be nil.
func (a *app) newObjective(m *model.ReactionModel, rec results.Sink, met *metrics.Metrics) *blackbox.Objective {
	obj := blackbox.NewObjective(m)
	obj.Config = a.cfg.Simulation.Blackbox()
	obj.Penalty = a.cfg.Objective.Penalty
	obj.Metrics = met
	obj.Logger = a.log
	if rec != nil {
		obj.Recorder = rec
	}
	return obj
}

// writeJSON writes v as indented JSON to the command's output.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
