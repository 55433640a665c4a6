package builder

import (
	"context"
	"strings"

	"github.com/Sternrassler/amd-aggregator/pkg/transport"
)

// HasResolver expands a required list by resolving each has! expression
// against the request's features. Plain ids pass through. Expressions that
// resolve to nothing are dropped, as are duplicates.
type HasResolver struct{}

// ExpandRequired returns the module ids of the required section in order.
func (HasResolver) ExpandRequired(ctx context.Context, req *transport.DecodedRequest) ([]string, error) {
	var out []string
	seen := make(map[string]bool)

	for _, id := range req.Required() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if expr, ok := strings.CutPrefix(id, "has!"); ok {
			resolved, err := transport.ResolveHas(expr, req)
			if err != nil {
				return nil, err
			}
			if resolved == "" {
				continue
			}
			id = resolved
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}
