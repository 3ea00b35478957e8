package fieldmap

import (
	"fmt"
	"sort"
	"sync"
)

var (
	regMu    sync.RWMutex
	registry = map[string]Map{}
)

// Register stores a named map. Registering a name twice replaces it.
func Register(m Map) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[m.name] = m
}

// Lookup returns the registered map with the given name.
func Lookup(name string) (Map, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	m, ok := registry[name]
	if !ok {
		return Map{}, fmt.Errorf("field map %q not registered (have %v)", name, namesLocked())
	}
	return m, nil
}

// Names lists the registered maps alphabetically.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
