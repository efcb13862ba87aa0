package market

import "sort"

// Registry manages the set of initialized markets. Like the rest of the core
// it relies on the host's instruction serialization and holds no lock.
type Registry struct {
	markets map[string]*Market // symbol -> market
}

// NewRegistry creates an empty market registry.
func NewRegistry() *Registry {
	return &Registry{markets: make(map[string]*Market)}
}

// Register adds a new market. Fails with ErrExists if the symbol is taken.
func (r *Registry) Register(m *Market) error {
	if _, exists := r.markets[m.Symbol]; exists {
		return ErrExists
	}
	r.markets[m.Symbol] = m
	return nil
}

// Get retrieves a market by symbol.
func (r *Registry) Get(symbol string) (*Market, error) {
	m, exists := r.markets[symbol]
	if !exists {
		return nil, ErrNotFound
	}
	return m, nil
}

// Remove deletes a market from the registry. The caller is responsible for
// checking that the market's book is empty first.
func (r *Registry) Remove(symbol string) error {
	if _, exists := r.markets[symbol]; !exists {
		return ErrNotFound
	}
	delete(r.markets, symbol)
	return nil
}

// List returns all markets sorted by symbol for deterministic iteration.
func (r *Registry) List() []*Market {
	symbols := make([]string, 0, len(r.markets))
	for s := range r.markets {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	out := make([]*Market, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, r.markets[s])
	}
	return out
}

// Count returns the number of registered markets.
func (r *Registry) Count() int { return len(r.markets) }

// Exists checks whether a symbol is registered.
func (r *Registry) Exists(symbol string) bool {
	_, ok := r.markets[symbol]
	return ok
}
