package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// BatchConfig holds batch builder configuration.
type BatchConfig struct {
	// MaxConcurrency is the maximum number of modules built in parallel.
	MaxConcurrency int
	// Timeout per module build.
	Timeout time.Duration
}

// DefaultBatchConfig returns the default batch configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 8,
		Timeout:        15 * time.Second,
	}
}

// BuildFunc builds the output of one module.
type BuildFunc func(ctx context.Context, mid string) (string, error)

// ModuleError reports the first module that failed in a batch.
type ModuleError struct {
	Module string
	Err    error
}

// Error implements the error interface.
func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %s: %v", e.Module, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ModuleError) Unwrap() error {
	return e.Err
}

// Batch builds many modules in parallel with a bounded worker pool.
type Batch struct {
	config BatchConfig
}

// NewBatch creates a batch builder.
func NewBatch(config BatchConfig) *Batch {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 8
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &Batch{config: config}
}

// BuildAll runs fn for every module id and returns the outputs in the
// order of mids. The first failure cancels the remaining builds and is
// returned as a *ModuleError.
func (b *Batch) BuildAll(ctx context.Context, mids []string, fn BuildFunc) ([]string, error) {
	if len(mids) == 0 {
		return nil, nil
	}
	start := time.Now()

	// Single module optimization
	if len(mids) == 1 {
		out, err := b.buildOne(ctx, mids[0], fn)
		if err != nil {
			return nil, err
		}
		return []string{out}, nil
	}

	log.Debug().
		Int("modules", len(mids)).
		Int("workers", b.config.MaxConcurrency).
		Msg("Starting parallel module build")

	results := make([]string, len(mids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.MaxConcurrency)

	for i, mid := range mids {
		g.Go(func() error {
			out, err := b.buildOne(gctx, mid, fn)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warn().
			Err(err).
			Int("modules", len(mids)).
			Msg("Module build failed")
		return nil, err
	}

	log.Debug().
		Int("modules", len(mids)).
		Dur("duration", time.Since(start)).
		Msg("Module build complete")

	return results, nil
}

func (b *Batch) buildOne(ctx context.Context, mid string, fn BuildFunc) (string, error) {
	mctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	out, err := fn(mctx, mid)
	if err != nil {
		return "", &ModuleError{Module: mid, Err: err}
	}
	return out, nil
}
