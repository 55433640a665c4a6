package transport

import "fmt"

// LayerContributionType names a position in the layer output where a
// transport may inject scaffolding.
type LayerContributionType int

const (
	// BeginResponse precedes everything written to the response.
	BeginResponse LayerContributionType = iota

	// BeginModules precedes all module builds.
	BeginModules

	// BeforeFirstModule precedes the first module build.
	BeforeFirstModule

	// BeforeSubsequentModule precedes modules 2..n. Kept apart from
	// BeforeFirstModule so list separators can be placed.
	BeforeSubsequentModule

	// AfterModule follows each module build.
	AfterModule

	// EndModules follows all module builds.
	EndModules

	// BeginRequiredModules precedes the required module builds.
	BeginRequiredModules

	// BeforeFirstRequiredModule precedes the first required module build.
	BeforeFirstRequiredModule

	// BeforeSubsequentRequiredModule precedes required modules 2..n.
	BeforeSubsequentRequiredModule

	// AfterRequiredModule follows each required module build.
	AfterRequiredModule

	// EndRequiredModules follows all required module builds.
	EndRequiredModules

	// EndResponse follows everything else.
	EndResponse
)

var contributionNames = [...]string{
	"BEGIN_RESPONSE",
	"BEGIN_MODULES",
	"BEFORE_FIRST_MODULE",
	"BEFORE_SUBSEQUENT_MODULE",
	"AFTER_MODULE",
	"END_MODULES",
	"BEGIN_REQUIRED_MODULES",
	"BEFORE_FIRST_REQUIRED_MODULE",
	"BEFORE_SUBSEQUENT_REQUIRED_MODULE",
	"AFTER_REQUIRED_MODULE",
	"END_REQUIRED_MODULES",
	"END_RESPONSE",
}

func (t LayerContributionType) String() string {
	if t < 0 || int(t) >= len(contributionNames) {
		return fmt.Sprintf("LayerContributionType(%d)", int(t))
	}
	return contributionNames[t]
}

// PerModule reports whether events of this type carry a single module id.
func (t LayerContributionType) PerModule() bool {
	switch t {
	case BeforeFirstModule, BeforeSubsequentModule, AfterModule,
		BeforeFirstRequiredModule, BeforeSubsequentRequiredModule, AfterRequiredModule:
		return true
	}
	return false
}

// CarriesRequiredList reports whether events of this type carry the comma
// joined required module list.
func (t LayerContributionType) CarriesRequiredList() bool {
	return t == BeginRequiredModules || t == EndRequiredModules
}

// start is the state before BeginResponse.
const start LayerContributionType = -1

var transitions = map[LayerContributionType][]LayerContributionType{
	start:                          {BeginResponse},
	BeginResponse:                  {BeginModules},
	BeginModules:                   {BeforeFirstModule, EndModules},
	BeforeFirstModule:              {AfterModule},
	BeforeSubsequentModule:         {AfterModule},
	AfterModule:                    {BeforeSubsequentModule, EndModules},
	EndModules:                     {BeginRequiredModules, EndResponse},
	BeginRequiredModules:           {BeforeFirstRequiredModule, EndRequiredModules},
	BeforeFirstRequiredModule:      {AfterRequiredModule},
	BeforeSubsequentRequiredModule: {AfterRequiredModule},
	AfterRequiredModule:            {BeforeSubsequentRequiredModule, EndRequiredModules},
	EndRequiredModules:             {EndResponse},
	EndResponse:                    nil,
}

// Sequencer enforces the layer contribution state machine for one
// response. It is not safe for concurrent use.
type Sequencer struct {
	state LayerContributionType
}

// NewSequencer returns a Sequencer positioned before BeginResponse.
func NewSequencer() *Sequencer {
	return &Sequencer{state: start}
}

// Advance moves to next, or returns ErrIllegalTransition.
func (s *Sequencer) Advance(next LayerContributionType) error {
	for _, allowed := range transitions[s.state] {
		if allowed == next {
			s.state = next
			return nil
		}
	}
	from := "START"
	if s.state != start {
		from = s.state.String()
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, next)
}

// Done reports whether EndResponse has been reached.
func (s *Sequencer) Done() bool {
	return s.state == EndResponse
}
