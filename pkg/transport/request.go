package transport

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// DefaultConfigVarName is the loader config variable used when a request
// does not name one.
const DefaultConfigVarName = "require"

// OptimizationLevel is the requested degree of code transformation. Module
// builders honor it best-effort.
type OptimizationLevel int

const (
	OptimizationNone OptimizationLevel = iota
	OptimizationWhitespace
	OptimizationSimple
	OptimizationAdvanced
)

// DefaultOptimizationLevel applies when a request has no opt parameter.
const DefaultOptimizationLevel = OptimizationSimple

var optimizationNames = [...]string{"NONE", "WHITESPACE", "SIMPLE", "ADVANCED"}

func (l OptimizationLevel) String() string {
	if l < 0 || int(l) >= len(optimizationNames) {
		return "UNKNOWN"
	}
	return optimizationNames[l]
}

// ParseOptimizationLevel parses a case-insensitive level token. An empty
// token yields DefaultOptimizationLevel.
func ParseOptimizationLevel(token string) (OptimizationLevel, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return DefaultOptimizationLevel, nil
	}
	for i, name := range optimizationNames {
		if strings.EqualFold(token, name) {
			return OptimizationLevel(i), nil
		}
	}
	return 0, ErrUnknownOptimizationLevel
}

// FeatureMap maps a has! feature name to its value. A feature missing from
// the map is unset.
type FeatureMap map[string]bool

// String returns the canonical form: names sorted, false features prefixed
// with '!', joined by '*'.
func (m FeatureMap) String() string {
	if len(m) == 0 {
		return ""
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('*')
		}
		if !m[name] {
			b.WriteByte('!')
		}
		b.WriteString(name)
	}
	return b.String()
}

// ParseFeatureMap parses the has parameter format produced by String.
// Empty entries are skipped; a repeated feature keeps its last value.
func ParseFeatureMap(s string) FeatureMap {
	m := FeatureMap{}
	for _, part := range strings.Split(s, "*") {
		part = strings.TrimSpace(part)
		value := true
		if strings.HasPrefix(part, "!") {
			value = false
			part = strings.TrimSpace(part[1:])
		}
		if part == "" {
			continue
		}
		m[part] = value
	}
	return m
}

// Flags are the boolean request options.
type Flags struct {
	ExpandRequireLists   bool
	ExportModuleNames    bool
	ShowFilenames        bool
	NoCache              bool
	ExpandRequireLogging bool
}

// RequestSpec carries raw, not yet validated request fields.
type RequestSpec struct {
	Modules           []string
	Features          FeatureMap
	OptimizationLevel string
	Flags             Flags
	Locales           []string
	Required          string
	ConfigVarName     string
}

// DecodedRequest is the canonical, immutable form of an aggregator
// request. Accessors return copies.
type DecodedRequest struct {
	modules       []string
	features      FeatureMap
	optimization  OptimizationLevel
	flags         Flags
	locales       []string
	required      []string
	configVarName string
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// NewDecodedRequest validates spec and canonicalizes it. It returns a
// *DecodeError and no request when any field is invalid.
func NewDecodedRequest(spec RequestSpec) (*DecodedRequest, error) {
	level, err := ParseOptimizationLevel(spec.OptimizationLevel)
	if err != nil {
		return nil, decodeErr(ParamOptimize, spec.OptimizationLevel, err)
	}

	locales, err := canonicalLocales(spec.Locales)
	if err != nil {
		return nil, err
	}

	features := FeatureMap{}
	for name, value := range spec.Features {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if strings.Contains(name, "*") || strings.HasPrefix(name, "!") {
			return nil, decodeErr(ParamFeatures, name, ErrInvalidFeatureName)
		}
		features[name] = value
	}

	required, err := validateRequired(spec.Required, features)
	if err != nil {
		return nil, err
	}

	cv := strings.TrimSpace(spec.ConfigVarName)
	if cv == "" {
		cv = DefaultConfigVarName
	} else if !identifierPattern.MatchString(cv) {
		return nil, decodeErr(ParamConfigVarName, cv, ErrInvalidConfigVarName)
	}

	return &DecodedRequest{
		modules:       splitList(strings.Join(spec.Modules, ",")),
		features:      features,
		optimization:  level,
		flags:         spec.Flags,
		locales:       locales,
		required:      required,
		configVarName: cv,
	}, nil
}

func canonicalLocales(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, loc := range raw {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		tag, err := language.Parse(loc)
		if err != nil {
			return nil, decodeErr(ParamLocales, loc, ErrMalformedLocale)
		}
		s := tag.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func validateRequired(raw string, features FeatureMap) ([]string, error) {
	ids := splitList(raw)
	for _, id := range ids {
		plugin, rest, ok := strings.Cut(id, "!")
		if !ok {
			continue
		}
		if plugin != "has" {
			return nil, decodeErr(ParamRequired, id, ErrPluginNotAllowed)
		}
		referenced, err := HasFeatures(rest)
		if err != nil {
			return nil, decodeErr(ParamRequired, id, err)
		}
		for _, name := range referenced {
			if _, defined := features[name]; !defined {
				return nil, decodeErr(ParamRequired, id, ErrUndefinedFeature)
			}
		}
	}
	return ids, nil
}

// splitList splits a comma separated list, trimming entries and dropping
// empty ones.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Modules returns the requested module ids in request order.
func (r *DecodedRequest) Modules() []string {
	return append([]string(nil), r.modules...)
}

// ModulesString is the canonical form of the module sequence.
func (r *DecodedRequest) ModulesString() string {
	return strings.Join(r.modules, ",")
}

// Features returns a copy of the feature map.
func (r *DecodedRequest) Features() FeatureMap {
	m := make(FeatureMap, len(r.features))
	for k, v := range r.features {
		m[k] = v
	}
	return m
}

// Feature reports the value of a feature and whether it is set.
func (r *DecodedRequest) Feature(name string) (value, set bool) {
	value, set = r.features[name]
	return value, set
}

// FeaturesString is the canonical form of the feature map.
func (r *DecodedRequest) FeaturesString() string {
	return r.features.String()
}

// OptimizationLevel returns the requested optimization level.
func (r *DecodedRequest) OptimizationLevel() OptimizationLevel {
	return r.optimization
}

// Flags returns the boolean request options.
func (r *DecodedRequest) Flags() Flags {
	return r.flags
}

// ExpandRequireLists reports whether require() dependency lists should
// include nested dependencies.
func (r *DecodedRequest) ExpandRequireLists() bool { return r.flags.ExpandRequireLists }

// ExportModuleNames reports whether anonymous define() calls get names.
func (r *DecodedRequest) ExportModuleNames() bool { return r.flags.ExportModuleNames }

// ShowFilenames reports whether output is annotated with source file names.
func (r *DecodedRequest) ShowFilenames() bool { return r.flags.ShowFilenames }

// NoCache reports whether server and client caching is disabled.
func (r *DecodedRequest) NoCache() bool { return r.flags.NoCache }

// ExpandRequireLogging reports whether expansion is logged in the browser.
func (r *DecodedRequest) ExpandRequireLogging() bool { return r.flags.ExpandRequireLogging }

// Locales returns the canonical locale set, sorted.
func (r *DecodedRequest) Locales() []string {
	return append([]string(nil), r.locales...)
}

// LocalesString is the canonical form of the locale set.
func (r *DecodedRequest) LocalesString() string {
	return strings.Join(r.locales, ",")
}

// Required returns the required module ids, or nil.
func (r *DecodedRequest) Required() []string {
	return append([]string(nil), r.required...)
}

// RequiredString is the comma joined required module list.
func (r *DecodedRequest) RequiredString() string {
	return strings.Join(r.required, ",")
}

// HasRequired reports whether the request names required modules.
func (r *DecodedRequest) HasRequired() bool {
	return len(r.required) > 0
}

// ConfigVarName returns the loader config variable name.
func (r *DecodedRequest) ConfigVarName() string {
	return r.configVarName
}
