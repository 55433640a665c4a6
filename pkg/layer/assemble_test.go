package layer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/amd-aggregator/internal/testutil"
	"github.com/Sternrassler/amd-aggregator/pkg/transport"
)

func newTestAssembler(t *testing.T, mods *testutil.MockModuleBuilder) *Assembler {
	t.Helper()
	a, err := NewAssembler(AssemblerConfig{
		Transport: transport.NewHTTPTransport(zerolog.Nop()),
		Modules:   mods,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewAssembler() error = %v", err)
	}
	return a
}

func TestAssembler_ModulesOnly(t *testing.T) {
	mods := testutil.NewMockModuleBuilder(map[string]string{"a": "A", "b": "B"})
	a := newTestAssembler(t, mods)
	req := newRequest(t, transport.RequestSpec{Modules: []string{"a", "b"}})

	out, err := a.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := `require({cache:{"a":function(){A` + "\n}" + `,"b":function(){B` + "\n}}});\n"
	if string(out) != want {
		t.Errorf("Build() =\n%q\nwant\n%q", out, want)
	}
}

func TestAssembler_NoModules(t *testing.T) {
	a := newTestAssembler(t, testutil.NewMockModuleBuilder(nil))

	out, err := a.Build(context.Background(), newRequest(t, transport.RequestSpec{}))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if string(out) != "require({cache:{}});\n" {
		t.Errorf("Build() = %q", out)
	}
}

func TestAssembler_Required(t *testing.T) {
	mods := testutil.NewMockModuleBuilder(map[string]string{
		"a": "A", "boot": "BOOT", "touch": "TOUCH", "mouse": "MOUSE",
	})
	a := newTestAssembler(t, mods)
	req := newRequest(t, transport.RequestSpec{
		Modules:  []string{"a"},
		Features: transport.FeatureMap{"touch": true},
		Required: "boot,has!touch?touch:mouse",
	})

	out, err := a.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := `require({cache:{"a":function(){A` + "\n}}});\n" +
		`require({cache:{"boot":function(){BOOT` + "\n}" + `,"touch":function(){TOUCH` + "\n}}});\n" +
		`require(["boot","has!touch?touch:mouse"]);` + "\n"
	if string(out) != want {
		t.Errorf("Build() =\n%s\nwant\n%s", out, want)
	}

	for _, mid := range mods.GetCalls() {
		if mid == "mouse" {
			t.Error("unselected has! branch was built")
		}
	}
}

func TestAssembler_ModuleError(t *testing.T) {
	boom := errors.New("syntax error")
	mods := testutil.NewMockModuleBuilder(map[string]string{"a": "A", "b": "B"})
	mods.SetError("b", boom)
	a := newTestAssembler(t, mods)

	_, err := a.Build(context.Background(), newRequest(t, transport.RequestSpec{Modules: []string{"a", "b"}}))

	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("error = %v, want *BuildError", err)
	}
	if be.Module != "b" || !errors.Is(err, boom) {
		t.Errorf("BuildError = %+v", be)
	}
}

func TestAssembler_ThroughCache(t *testing.T) {
	mods := testutil.NewMockModuleBuilder(map[string]string{"a": "A"})
	c := newTestCache(t, newTestAssembler(t, mods))
	req := newRequest(t, transport.RequestSpec{Modules: []string{"a"}})

	for i := 0; i < 3; i++ {
		if _, err := c.GetLayer(context.Background(), req); err != nil {
			t.Fatalf("GetLayer() error = %v", err)
		}
	}
	if got := len(mods.GetCalls()); got != 1 {
		t.Errorf("module built %d times, want 1", got)
	}
}

func TestNewAssembler_Validation(t *testing.T) {
	if _, err := NewAssembler(AssemblerConfig{Modules: testutil.NewMockModuleBuilder(nil)}); err == nil {
		t.Error("NewAssembler() without transport should fail")
	}
	if _, err := NewAssembler(AssemblerConfig{Transport: transport.NewHTTPTransport(zerolog.Nop())}); err == nil {
		t.Error("NewAssembler() without module builder should fail")
	}
}

// recordingTransport logs every contribution event before delegating.
type recordingTransport struct {
	*transport.HTTPTransport
	events []string
}

func (r *recordingTransport) GetLayerContribution(req *transport.DecodedRequest, typ transport.LayerContributionType, mid string) (string, bool) {
	r.events = append(r.events, typ.String()+"("+mid+")")
	return r.HTTPTransport.GetLayerContribution(req, typ, mid)
}

func TestAssembler_ContributionSequence(t *testing.T) {
	tests := []struct {
		name string
		spec transport.RequestSpec
		want []string
	}{
		{
			name: "modules",
			spec: transport.RequestSpec{Modules: []string{"a", "b"}},
			want: []string{
				"BEGIN_RESPONSE()",
				"BEGIN_MODULES()",
				"BEFORE_FIRST_MODULE(a)",
				"AFTER_MODULE(a)",
				"BEFORE_SUBSEQUENT_MODULE(b)",
				"AFTER_MODULE(b)",
				"END_MODULES()",
				"END_RESPONSE()",
			},
		},
		{
			name: "required",
			spec: transport.RequestSpec{
				Modules:  []string{"a"},
				Features: transport.FeatureMap{"f": true},
				Required: "boot,has!f?x:y",
			},
			want: []string{
				"BEGIN_RESPONSE()",
				"BEGIN_MODULES()",
				"BEFORE_FIRST_MODULE(a)",
				"AFTER_MODULE(a)",
				"END_MODULES()",
				"BEGIN_REQUIRED_MODULES(boot,has!f?x:y)",
				"BEFORE_FIRST_REQUIRED_MODULE(boot)",
				"AFTER_REQUIRED_MODULE(boot)",
				"BEFORE_SUBSEQUENT_REQUIRED_MODULE(x)",
				"AFTER_REQUIRED_MODULE(x)",
				"END_REQUIRED_MODULES(boot,has!f?x:y)",
				"END_RESPONSE()",
			},
		},
		{
			name: "empty",
			spec: transport.RequestSpec{},
			want: []string{
				"BEGIN_RESPONSE()",
				"BEGIN_MODULES()",
				"END_MODULES()",
				"END_RESPONSE()",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingTransport{HTTPTransport: transport.NewHTTPTransport(zerolog.Nop())}
			mods := testutil.NewMockModuleBuilder(map[string]string{
				"a": "A", "b": "B", "boot": "BOOT", "x": "X", "y": "Y",
			})
			a, err := NewAssembler(AssemblerConfig{Transport: rec, Modules: mods, Logger: zerolog.Nop()})
			if err != nil {
				t.Fatalf("NewAssembler() error = %v", err)
			}

			if _, err := a.Build(context.Background(), newRequest(t, tt.spec)); err != nil {
				t.Fatalf("Build() error = %v", err)
			}

			got := strings.Join(rec.events, " ")
			want := strings.Join(tt.want, " ")
			if got != want {
				t.Errorf("events =\n%s\nwant\n%s", got, want)
			}
		})
	}
}
