package token

import (
	"sync"

	"github.com/RunyiYang/ETHer-BIT/pkg/exchange"
)

// Registry maps token asset identifiers to their contract bindings.
// Satisfies exchange.TokenRegistry.
type Registry struct {
	mu     sync.RWMutex
	tokens map[exchange.Asset]exchange.Token
}

var _ exchange.TokenRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[exchange.Asset]exchange.Token)}
}

// Register binds a token contract to its asset identifier.
func (r *Registry) Register(asset exchange.Asset, tok exchange.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[asset] = tok
}

// Token resolves an asset identifier.
func (r *Registry) Token(asset exchange.Asset) (exchange.Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tok, ok := r.tokens[asset]
	return tok, ok
}
