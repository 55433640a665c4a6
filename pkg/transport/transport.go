package transport

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Query parameter names. Aliases are listed in paramAliases.
const (
	ParamModules              = "modules"
	ParamCount                = "count"
	ParamFeatures             = "has"
	ParamOptimize             = "opt"
	ParamExpandRequire        = "re"
	ParamExportNames          = "en"
	ParamShowFilenames        = "fn"
	ParamNoCache              = "nc"
	ParamExpandRequireLogging = "rl"
	ParamLocales              = "locs"
	ParamRequired             = "required"
	ParamConfigVarName        = "cv"
)

var paramAliases = map[string][]string{
	ParamOptimize:             {"optimize"},
	ParamExpandRequire:        {"expandRequire"},
	ParamExportNames:          {"exportNames"},
	ParamShowFilenames:        {"showFilenames"},
	ParamNoCache:              {"noCache"},
	ParamExpandRequireLogging: {"expandRequireLogging"},
	ParamLocales:              {"locales"},
	ParamConfigVarName:        {"configVarName"},
}

// Transport decodes aggregator requests and supplies the scaffolding that
// frames module output in a layer.
type Transport interface {
	// DecorateRequest parses r into a DecodedRequest. On failure it returns
	// a *DecodeError and no request.
	DecorateRequest(r *http.Request) (*DecodedRequest, error)

	// ContributeLoaderExtensionJavaScript appends script to the loader
	// extension module. Contributions are emitted in registration order.
	ContributeLoaderExtensionJavaScript(contribution string)

	// LoaderExtensionJavaScript returns the accumulated loader extension
	// module source.
	LoaderExtensionJavaScript() string

	// Reset drops all loader extension contributions. It is called when
	// server configuration is reloaded.
	Reset()

	// Replace swaps the loader extension contributions for contributions in
	// one step, so readers never observe a partial list.
	Replace(contributions []string)

	// GetLayerContribution returns the text to inject at position t, and
	// false when the transport has nothing to add. mid is the module id for
	// per-module events, the comma joined required list for the required
	// begin/end events, and empty otherwise.
	GetLayerContribution(req *DecodedRequest, t LayerContributionType, mid string) (string, bool)

	// CacheKeyGenerators returns the generators covering request state that
	// affects contributions but is not part of the canonical key. Nil means
	// contributions are invariant for a given key.
	CacheKeyGenerators() []CacheKeyGenerator
}

// HTTPTransport is the AMD transport. It frames modules as entries of a
// require({cache:{...}}) call and finishes the required section with a
// require([...]) of the required ids.
type HTTPTransport struct {
	logger zerolog.Logger

	mu            sync.RWMutex
	contributions []string
}

// NewHTTPTransport creates a transport with no loader extension
// contributions.
func NewHTTPTransport(logger zerolog.Logger) *HTTPTransport {
	return &HTTPTransport{logger: logger}
}

// DecorateRequest implements Transport.
func (t *HTTPTransport) DecorateRequest(r *http.Request) (*DecodedRequest, error) {
	q := r.URL.Query()

	modules := splitList(param(q, ParamModules))
	if raw := param(q, ParamCount); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil || count != len(modules) {
			return nil, decodeErr(ParamCount, raw, ErrModuleCount)
		}
	}

	var flags Flags
	for _, f := range []struct {
		name string
		dst  *bool
	}{
		{ParamExpandRequire, &flags.ExpandRequireLists},
		{ParamExportNames, &flags.ExportModuleNames},
		{ParamShowFilenames, &flags.ShowFilenames},
		{ParamNoCache, &flags.NoCache},
		{ParamExpandRequireLogging, &flags.ExpandRequireLogging},
	} {
		v, err := parseFlag(param(q, f.name))
		if err != nil {
			return nil, decodeErr(f.name, param(q, f.name), err)
		}
		*f.dst = v
	}

	req, err := NewDecodedRequest(RequestSpec{
		Modules:           modules,
		Features:          ParseFeatureMap(param(q, ParamFeatures)),
		OptimizationLevel: param(q, ParamOptimize),
		Flags:             flags,
		Locales:           strings.Split(param(q, ParamLocales), ","),
		Required:          param(q, ParamRequired),
		ConfigVarName:     param(q, ParamConfigVarName),
	})
	if err != nil {
		t.logger.Debug().Err(err).Str("query", r.URL.RawQuery).Msg("Request rejected")
		return nil, err
	}

	t.logger.Debug().
		Int("modules", len(modules)).
		Str("opt", req.OptimizationLevel().String()).
		Bool("required", req.HasRequired()).
		Msg("Request decoded")
	return req, nil
}

// param returns the first non-empty value of name or one of its aliases.
func param(q url.Values, name string) string {
	if v := q.Get(name); v != "" {
		return v
	}
	for _, alias := range paramAliases[name] {
		if v := q.Get(alias); v != "" {
			return v
		}
	}
	return ""
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no":
		return false, nil
	case "1", "true", "yes":
		return true, nil
	}
	return false, ErrInvalidFlag
}

// ContributeLoaderExtensionJavaScript implements Transport.
func (t *HTTPTransport) ContributeLoaderExtensionJavaScript(contribution string) {
	t.mu.Lock()
	t.contributions = append(t.contributions, contribution)
	n := len(t.contributions)
	t.mu.Unlock()

	loaderExtensionContributions.Set(float64(n))
	t.logger.Debug().Int("contributions", n).Msg("Loader extension JavaScript contributed")
}

// LoaderExtensionJavaScript implements Transport. Contributed code runs
// with urlProcessors in scope: an array of functions, each taking and
// returning the aggregator URL just before a request is sent.
func (t *HTTPTransport) LoaderExtensionJavaScript() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var b strings.Builder
	b.WriteString("(function(urlProcessors){\n")
	for _, c := range t.contributions {
		b.WriteString(c)
		if !strings.HasSuffix(c, "\n") {
			b.WriteByte('\n')
		}
	}
	b.WriteString("})((this.require && this.require.urlProcessors) || []);\n")
	return b.String()
}

// Contributions returns the registered contributions in order.
func (t *HTTPTransport) Contributions() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.contributions...)
}

// Reset implements Transport.
func (t *HTTPTransport) Reset() {
	t.mu.Lock()
	t.contributions = nil
	t.mu.Unlock()

	loaderExtensionContributions.Set(0)
	t.logger.Info().Msg("Loader extension contributions reset")
}

// Replace implements Transport.
func (t *HTTPTransport) Replace(contributions []string) {
	next := append([]string(nil), contributions...)
	t.mu.Lock()
	t.contributions = next
	t.mu.Unlock()

	loaderExtensionContributions.Set(float64(len(next)))
	t.logger.Info().Int("contributions", len(next)).Msg("Loader extension contributions replaced")
}

// GetLayerContribution implements Transport.
func (t *HTTPTransport) GetLayerContribution(req *DecodedRequest, typ LayerContributionType, mid string) (string, bool) {
	switch typ {
	case BeginModules, BeginRequiredModules:
		return "require({cache:{", true
	case BeforeFirstModule, BeforeFirstRequiredModule:
		return quoteJS(mid) + ":function(){", true
	case BeforeSubsequentModule, BeforeSubsequentRequiredModule:
		return "," + quoteJS(mid) + ":function(){", true
	case AfterModule, AfterRequiredModule:
		return "\n}", true
	case EndModules:
		return "}});\n", true
	case EndRequiredModules:
		var ids []string
		for _, id := range splitList(mid) {
			ids = append(ids, quoteJS(id))
		}
		return "}});\nrequire([" + strings.Join(ids, ",") + "]);\n", true
	}
	return "", false
}

// CacheKeyGenerators implements Transport. Contributions depend only on
// the module lists, which are part of the key.
func (t *HTTPTransport) CacheKeyGenerators() []CacheKeyGenerator {
	return nil
}

func quoteJS(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(b)
}

// Ensure HTTPTransport implements Transport
var _ Transport = (*HTTPTransport)(nil)
