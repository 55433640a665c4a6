// Package testutil provides testing utilities for the AMD aggregator.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/amd-aggregator/pkg/transport"
)

// MockBuilder is a configurable layer builder for testing.
type MockBuilder struct {
	mu sync.Mutex

	// Delay is applied to every build.
	Delay time.Duration

	// Gate, when set, blocks every build until it is closed or receives.
	Gate chan struct{}

	// Err is returned by every build when set.
	Err error

	// Started receives one value when a build begins, if set.
	Started chan struct{}

	// Tracking
	BuildCount int
	LastKey    string
}

// NewMockBuilder creates a MockBuilder.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{}
}

// Build returns the modules of req joined by "+", prefixed with the build
// number so that rebuilds are distinguishable.
func (m *MockBuilder) Build(ctx context.Context, req *transport.DecodedRequest) ([]byte, error) {
	m.mu.Lock()
	m.BuildCount++
	n := m.BuildCount
	m.LastKey = req.ModulesString()
	gate, started, delay, err := m.Gate, m.Started, m.Delay, m.Err
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("#%d:%s", n, strings.Join(req.Modules(), "+"))), nil
}

// GetBuildCount returns the number of builds started.
func (m *MockBuilder) GetBuildCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.BuildCount
}

// Reset clears all tracking counters.
func (m *MockBuilder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BuildCount = 0
	m.LastKey = ""
}

// MockModuleBuilder serves fixed module output for testing.
type MockModuleBuilder struct {
	mu      sync.Mutex
	modules map[string]string
	errs    map[string]error

	// Tracking
	Calls []string
}

// NewMockModuleBuilder creates a MockModuleBuilder serving modules.
func NewMockModuleBuilder(modules map[string]string) *MockModuleBuilder {
	m := &MockModuleBuilder{
		modules: make(map[string]string, len(modules)),
		errs:    make(map[string]error),
	}
	for k, v := range modules {
		m.modules[k] = v
	}
	return m
}

// SetError makes builds of mid fail with err.
func (m *MockModuleBuilder) SetError(mid string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[mid] = err
}

// BuildModule returns the configured output for mid.
func (m *MockModuleBuilder) BuildModule(ctx context.Context, req *transport.DecodedRequest, mid string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, mid)

	if err := m.errs[mid]; err != nil {
		return "", err
	}
	out, ok := m.modules[mid]
	if !ok {
		return "", fmt.Errorf("no such module %q", mid)
	}
	return out, nil
}

// GetCalls returns the module ids built so far.
func (m *MockModuleBuilder) GetCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}
