package scope

import "sync"

// Tree answers ancestry lookups against the directory's location data.
// Implementations must be safe for concurrent readers.
type Tree interface {
	// Ancestors returns the geographic ancestors of key, ordered from the
	// immediate parent up to and including the global scope. The boolean
	// reports whether the key resolves in the location data. The global
	// scope always resolves with no ancestors.
	Ancestors(key Key) ([]Key, bool)
}

// FallbackChain returns the rule/override resolution chain for a scope:
// the scope itself first, then its ancestors, ending at global. Returns an
// UnknownScopeError when the scope id does not resolve.
func FallbackChain(tree Tree, key Key) ([]Key, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if key.Type == TypeGlobal {
		return []Key{key}, nil
	}
	ancestors, ok := tree.Ancestors(key)
	if !ok {
		return nil, &UnknownScopeError{Scope: key}
	}
	chain := make([]Key, 0, len(ancestors)+1)
	chain = append(chain, key)
	chain = append(chain, ancestors...)
	return chain, nil
}

// OnChain reports whether key appears in chain.
func OnChain(chain []Key, key Key) bool {
	for _, c := range chain {
		if c == key {
			return true
		}
	}
	return false
}

// InMemoryTree is an in-memory implementation of Tree backed by a
// child-to-parent map. Thread-safe via RWMutex.
type InMemoryTree struct {
	mu      sync.RWMutex
	parents map[Key]Key
}

// NewInMemoryTree creates an empty in-memory location tree.
func NewInMemoryTree() *InMemoryTree {
	return &InMemoryTree{
		parents: make(map[Key]Key),
	}
}

// Add registers a location under its parent. The parent must itself be
// registered (or be the global scope) for Ancestors to resolve the chain.
func (t *InMemoryTree) Add(key, parent Key) {
	t.mu.Lock()
	t.parents[key] = parent
	t.mu.Unlock()
}

// Ancestors walks the parent map up to the global scope.
// Returns false if key or any ancestor on the way is not registered.
func (t *InMemoryTree) Ancestors(key Key) ([]Key, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if key.Type == TypeGlobal {
		return nil, true
	}

	var ancestors []Key
	current := key
	// Bounded by the hierarchy depth; the limit guards against a
	// malformed parent map with cycles.
	for i := 0; i < 8; i++ {
		parent, ok := t.parents[current]
		if !ok {
			return nil, false
		}
		ancestors = append(ancestors, parent)
		if parent.Type == TypeGlobal {
			return ancestors, true
		}
		current = parent
	}
	return nil, false
}
