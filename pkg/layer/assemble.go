package layer

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/amd-aggregator/pkg/builder"
	"github.com/Sternrassler/amd-aggregator/pkg/transport"
)

// ModuleBuilder produces the output of a single module for a request.
type ModuleBuilder interface {
	BuildModule(ctx context.Context, req *transport.DecodedRequest, mid string) (string, error)
}

// Resolver expands the required list of a request into the module ids
// whose output goes in the required section.
type Resolver interface {
	ExpandRequired(ctx context.Context, req *transport.DecodedRequest) ([]string, error)
}

// AssemblerConfig holds Assembler configuration.
type AssemblerConfig struct {
	Transport transport.Transport
	Modules   ModuleBuilder

	// Resolver defaults to builder.HasResolver.
	Resolver Resolver

	// Batch defaults to builder.NewBatch(builder.DefaultBatchConfig()).
	Batch *builder.Batch

	Logger zerolog.Logger
}

// Assembler is the Builder that produces layers. It builds modules in
// parallel and frames their output with transport contributions emitted
// in the fixed layer order.
type Assembler struct {
	transport transport.Transport
	modules   ModuleBuilder
	resolver  Resolver
	batch     *builder.Batch
	logger    zerolog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(cfg AssemblerConfig) (*Assembler, error) {
	if cfg.Transport == nil {
		return nil, errors.New("transport cannot be nil")
	}
	if cfg.Modules == nil {
		return nil, errors.New("module builder cannot be nil")
	}
	if cfg.Resolver == nil {
		cfg.Resolver = builder.HasResolver{}
	}
	if cfg.Batch == nil {
		cfg.Batch = builder.NewBatch(builder.DefaultBatchConfig())
	}
	return &Assembler{
		transport: cfg.Transport,
		modules:   cfg.Modules,
		resolver:  cfg.Resolver,
		batch:     cfg.Batch,
		logger:    cfg.Logger,
	}, nil
}

// Build implements Builder.
func (a *Assembler) Build(ctx context.Context, req *transport.DecodedRequest) ([]byte, error) {
	mods := req.Modules()

	var required []string
	if req.HasRequired() {
		var err error
		required, err = a.resolver.ExpandRequired(ctx, req)
		if err != nil {
			return nil, &BuildError{Err: fmt.Errorf("expand required modules: %w", err)}
		}
	}

	all := make([]string, 0, len(mods)+len(required))
	all = append(all, mods...)
	all = append(all, required...)

	outputs, err := a.batch.BuildAll(ctx, all, func(ctx context.Context, mid string) (string, error) {
		return a.modules.BuildModule(ctx, req, mid)
	})
	if err != nil {
		var me *builder.ModuleError
		if errors.As(err, &me) {
			return nil, &BuildError{Module: me.Module, Err: me.Err}
		}
		return nil, &BuildError{Err: err}
	}

	lw := &layerWriter{seq: transport.NewSequencer(), tr: a.transport, req: req}

	lw.emit(transport.BeginResponse, "")
	lw.emit(transport.BeginModules, "")
	for i, mid := range mods {
		if i == 0 {
			lw.emit(transport.BeforeFirstModule, mid)
		} else {
			lw.emit(transport.BeforeSubsequentModule, mid)
		}
		lw.buf.WriteString(outputs[i])
		lw.emit(transport.AfterModule, mid)
	}
	lw.emit(transport.EndModules, "")

	if req.HasRequired() {
		list := req.RequiredString()
		lw.emit(transport.BeginRequiredModules, list)
		for j, mid := range required {
			if j == 0 {
				lw.emit(transport.BeforeFirstRequiredModule, mid)
			} else {
				lw.emit(transport.BeforeSubsequentRequiredModule, mid)
			}
			lw.buf.WriteString(outputs[len(mods)+j])
			lw.emit(transport.AfterRequiredModule, mid)
		}
		lw.emit(transport.EndRequiredModules, list)
	}
	lw.emit(transport.EndResponse, "")

	if lw.err != nil {
		return nil, &BuildError{Err: lw.err}
	}

	a.logger.Debug().
		Int("modules", len(mods)).
		Int("required", len(required)).
		Int("size", lw.buf.Len()).
		Msg("Layer assembled")

	return lw.buf.Bytes(), nil
}

// layerWriter appends transport contributions to a buffer, checking each
// event against the layer sequence. The first error sticks.
type layerWriter struct {
	seq *transport.Sequencer
	tr  transport.Transport
	req *transport.DecodedRequest
	buf bytes.Buffer
	err error
}

func (w *layerWriter) emit(typ transport.LayerContributionType, mid string) {
	if w.err != nil {
		return
	}
	if err := w.seq.Advance(typ); err != nil {
		w.err = err
		return
	}
	if s, ok := w.tr.GetLayerContribution(w.req, typ, mid); ok {
		w.buf.WriteString(s)
	}
}

var _ Builder = (*Assembler)(nil)
