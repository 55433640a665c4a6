package layer

import (
	"strconv"
	"strings"

	"github.com/Sternrassler/amd-aggregator/pkg/transport"
)

// ComposeKey derives the composite cache key for a request. The key covers
// every request property that affects layer content plus the output of
// each generator, in the order given. Equal requests and equal generator
// outputs always produce byte-identical keys.
//
// Format:
//
//	mods="a,b";has="!ie*touch";opt="SIMPLE";locs="en-US";req="";cv="require";"flags"="fn:1"
func ComposeKey(req *transport.DecodedRequest, gens []transport.CacheKeyGenerator) (string, []GeneratorValue) {
	var b strings.Builder

	field := func(label, value string) {
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		b.WriteString(label)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(value))
	}

	field("mods", req.ModulesString())
	field("has", req.FeaturesString())
	field("opt", req.OptimizationLevel().String())
	field("locs", req.LocalesString())
	field("req", req.RequiredString())
	field("cv", req.ConfigVarName())

	values := make([]GeneratorValue, 0, len(gens))
	for _, g := range gens {
		v := GeneratorValue{Name: g.Name(), Value: g.GenerateKey(req)}
		values = append(values, v)
		field(strconv.Quote(v.Name), v.Value)
	}

	return b.String(), values
}
