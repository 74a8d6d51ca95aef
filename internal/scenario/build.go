package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nvandessel/vpgen/internal/assemble"
	"github.com/nvandessel/vpgen/internal/docstore"
	"github.com/nvandessel/vpgen/internal/extract"
	"github.com/nvandessel/vpgen/internal/metrics"
	"github.com/nvandessel/vpgen/internal/model"
	"github.com/nvandessel/vpgen/internal/store"
)

// Result is the outcome of a build.
type Result struct {
	Model *model.ReactionModel
	// Network is nil when the model was loaded from a persisted document.
	Network *extract.Network
	// Fallback reports that extraction failed and the persisted document was
	// used instead.
	Fallback bool
}

// Builder runs the extract, assemble and persist pipeline.
type Builder struct {
	// Graph may be nil, in which case extraction fails as unavailable.
	Graph store.GraphStore
	// Documents may be nil, in which case nothing is persisted and there is
	// no fallback.
	Documents docstore.Store
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Build extracts the scenario's network, assembles its model and persists
// the document under the scenario name. When extraction fails with an
// *extract.ExtractionError the previously persisted document is loaded
// instead.
func (b *Builder) Build(ctx context.Context, def *Definition) (*Result, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	species, err := def.Species()
	if err != nil {
		return nil, err
	}
	laws, err := def.Laws()
	if err != nil {
		return nil, err
	}
	logger := b.logger().With("scenario", def.Name)

	n, err := b.extract(ctx, def)
	if err != nil {
		var ee *extract.ExtractionError
		if !errors.As(err, &ee) || b.Documents == nil {
			return nil, err
		}
		logger.Warn("extraction failed, loading persisted model", "error", err)
		m, lerr := docstore.LoadModel(ctx, b.Documents, def.Name)
		if lerr != nil {
			return nil, errors.Join(err, fmt.Errorf("loading persisted model: %w", lerr))
		}
		return &Result{Model: m, Fallback: true}, nil
	}

	m, err := (&assemble.Assembler{Laws: laws, Logger: logger}).Assemble(n, species)
	if err != nil {
		return nil, fmt.Errorf("assembling %s: %w", def.Name, err)
	}
	if b.Documents != nil {
		if err := b.Documents.Put(ctx, def.Name, m.Document); err != nil {
			return nil, fmt.Errorf("persisting %s: %w", def.Name, err)
		}
		logger.Info("model persisted", "species", len(m.Document.Model.Species), "constants", len(m.KineticConstants))
	}
	return &Result{Model: m, Network: n}, nil
}

func (b *Builder) extract(ctx context.Context, def *Definition) (*extract.Network, error) {
	if b.Graph == nil {
		return nil, &extract.ExtractionError{Op: "connect", Err: store.ErrUnavailable}
	}
	ex := &extract.Extractor{Store: b.Graph, Logger: b.logger(), Metrics: b.Metrics}
	return ex.Extract(ctx, def.Scenario())
}
