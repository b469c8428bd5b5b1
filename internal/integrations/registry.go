// internal/integrations/registry.go
package integrations

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

var (
	regMu    sync.RWMutex
	registry = map[string]Factory{}
)

func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func Get(name string) (Factory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build tworzy katalog z fabryki zarejestrowanej pod name
func Build(name string, log zerolog.Logger, raw json.RawMessage) (Catalog, error) {
	f, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("brak fabryki integracji %q (dostępne: %v)", name, Names())
	}
	c, err := f(log.With().Str("integration", name).Logger(), raw)
	if err != nil {
		return nil, fmt.Errorf("integracja %q: %w", name, err)
	}
	return c, nil
}
