package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/amd-aggregator/pkg/readers"
	"github.com/Sternrassler/amd-aggregator/pkg/transport"
)

var (
	// ErrModuleNotFound indicates no source file exists for a module id.
	ErrModuleNotFound = errors.New("module not found")

	// ErrInvalidModuleID indicates a module id that does not map to a
	// path inside the module root.
	ErrInvalidModuleID = errors.New("invalid module id")

	// ErrUnsupportedPlugin indicates a loader plugin the builder cannot serve.
	ErrUnsupportedPlugin = errors.New("unsupported loader plugin")

	// ErrInvalidJSON indicates a .json module that is not valid JSON once
	// comments are removed.
	ErrInvalidJSON = errors.New("invalid JSON module")
)

// FileBuilder builds modules from source files below a root.
//
//   - plain ids resolve to <id>.js and are emitted verbatim
//   - .css files are comment-stripped and wrapped as a string module
//   - .json files are comment-stripped and wrapped as a value module
//   - text!<path> is wrapped as a string module
//
// The show-filenames flag adds a /* path */ banner and the export-names
// flag names the generated define calls. Both are covered by the builder's
// cache key generator.
type FileBuilder struct {
	fsys   fs.FS
	logger zerolog.Logger
}

// NewFileBuilder creates a FileBuilder over fsys.
func NewFileBuilder(fsys fs.FS, logger zerolog.Logger) *FileBuilder {
	return &FileBuilder{fsys: fsys, logger: logger}
}

// CacheKeyGenerators returns the generator covering the flags that change
// module output.
func (b *FileBuilder) CacheKeyGenerators() []transport.CacheKeyGenerator {
	return []transport.CacheKeyGenerator{
		transport.FlagsKeyGenerator{
			ID:    "files",
			Flags: []transport.Flag{transport.FlagShowFilenames, transport.FlagExportModuleNames},
		},
	}
}

// BuildModule returns the output of module mid for req.
func (b *FileBuilder) BuildModule(ctx context.Context, req *transport.DecodedRequest, mid string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()

	plugin, name := splitPlugin(mid)
	switch plugin {
	case "", "text":
	default:
		moduleBuilds.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlugin, plugin)
	}

	file := name
	if plugin == "" && path.Ext(file) == "" {
		file += ".js"
	}
	if !fs.ValidPath(file) {
		moduleBuilds.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %q", ErrInvalidModuleID, mid)
	}

	data, err := fs.ReadFile(b.fsys, file)
	if err != nil {
		moduleBuilds.WithLabelValues("error").Inc()
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrModuleNotFound, file)
		}
		return "", fmt.Errorf("read module source: %w", err)
	}

	var body string
	switch {
	case plugin == "text":
		body = defineModule(req, mid, quoteJS(string(data)))
	case path.Ext(file) == ".js":
		body = string(data)
	case path.Ext(file) == ".css":
		css, err := readers.StripComments(string(data))
		if err != nil {
			moduleBuilds.WithLabelValues("error").Inc()
			return "", fmt.Errorf("strip comments: %w", err)
		}
		body = defineModule(req, mid, quoteJS(strings.TrimSpace(css)))
	case path.Ext(file) == ".json":
		value, err := readers.StripComments(string(data))
		if err != nil {
			moduleBuilds.WithLabelValues("error").Inc()
			return "", fmt.Errorf("strip comments: %w", err)
		}
		value = strings.TrimSpace(value)
		if !json.Valid([]byte(value)) {
			moduleBuilds.WithLabelValues("error").Inc()
			return "", fmt.Errorf("%w: %s", ErrInvalidJSON, file)
		}
		body = defineModule(req, mid, value)
	default:
		body = defineModule(req, mid, quoteJS(string(data)))
	}

	if req.ShowFilenames() {
		body = "/* " + file + " */\n" + body
	}

	moduleBuilds.WithLabelValues("success").Inc()
	moduleBuildDuration.Observe(time.Since(start).Seconds())

	b.logger.Debug().
		Str("module", mid).
		Str("file", file).
		Int("size", len(body)).
		Msg("Module built")

	return body, nil
}

func splitPlugin(mid string) (plugin, name string) {
	if i := strings.IndexByte(mid, '!'); i >= 0 {
		return mid[:i], mid[i+1:]
	}
	return "", mid
}

func defineModule(req *transport.DecodedRequest, mid, value string) string {
	if req.ExportModuleNames() {
		return "define(" + quoteJS(mid) + "," + value + ");"
	}
	return "define(" + value + ");"
}

// quoteJS renders s as a JavaScript string literal. Markup is left
// unescaped so text modules stay readable.
func quoteJS(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
