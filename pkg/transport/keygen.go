package transport

import "strings"

// CacheKeyGenerator derives a discriminator for the layer cache key from a
// decoded request.
//
// Contract:
// - Determinism: equal requests must produce equal values.
// - Concurrency: implementations must be safe for concurrent use.
type CacheKeyGenerator interface {
	// Name identifies the generator in the composite key and in dumps.
	Name() string

	// GenerateKey returns the discriminator for req.
	GenerateKey(req *DecodedRequest) string
}

// KeyGeneratorFunc adapts a function to CacheKeyGenerator.
type KeyGeneratorFunc struct {
	ID string
	Fn func(req *DecodedRequest) string
}

// Name implements CacheKeyGenerator.
func (g KeyGeneratorFunc) Name() string { return g.ID }

// GenerateKey implements CacheKeyGenerator.
func (g KeyGeneratorFunc) GenerateKey(req *DecodedRequest) string { return g.Fn(req) }

// Flag selects one of the boolean request options.
type Flag int

const (
	FlagExpandRequireLists Flag = iota
	FlagExportModuleNames
	FlagShowFilenames
	FlagNoCache
	FlagExpandRequireLogging
)

var flagParams = [...]string{
	FlagExpandRequireLists:   ParamExpandRequire,
	FlagExportModuleNames:    ParamExportNames,
	FlagShowFilenames:        ParamShowFilenames,
	FlagNoCache:              ParamNoCache,
	FlagExpandRequireLogging: ParamExpandRequireLogging,
}

func (f Flag) value(flags Flags) bool {
	switch f {
	case FlagExpandRequireLists:
		return flags.ExpandRequireLists
	case FlagExportModuleNames:
		return flags.ExportModuleNames
	case FlagShowFilenames:
		return flags.ShowFilenames
	case FlagNoCache:
		return flags.NoCache
	case FlagExpandRequireLogging:
		return flags.ExpandRequireLogging
	}
	return false
}

// FlagsKeyGenerator discriminates on a chosen set of boolean options. It
// suits module builders whose output depends on those options.
type FlagsKeyGenerator struct {
	ID    string
	Flags []Flag
}

// Name implements CacheKeyGenerator.
func (g FlagsKeyGenerator) Name() string { return g.ID }

// GenerateKey renders the selected flags as "param:0|1" pairs joined by ';'.
func (g FlagsKeyGenerator) GenerateKey(req *DecodedRequest) string {
	flags := req.Flags()
	parts := make([]string, 0, len(g.Flags))
	for _, f := range g.Flags {
		bit := "0"
		if f.value(flags) {
			bit = "1"
		}
		parts = append(parts, flagParams[f]+":"+bit)
	}
	return strings.Join(parts, ";")
}
