package vcs

import (
	"fmt"
	"sort"
	"sync"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/shell"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
)

// Factory builds a Provider rooted at dir.
type Factory func(dir string, runner shell.Runner) Provider

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available to Open under name. Backends call it
// from init.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Backends lists registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open returns the named backend for dir.
func Open(name, dir string, runner shell.Runner) (Provider, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errclass.ErrConfiguration.WithMessage(fmt.Sprintf("unknown vcs %q (available: %v)", name, Backends()))
	}
	return f(dir, runner), nil
}
