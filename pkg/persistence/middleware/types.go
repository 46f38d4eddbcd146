package middleware

import (
	"context"
	"fmt"

	"github.com/aretw0/ussdflow/pkg/ports"
)

// Middleware allows wrapping a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

func list(ctx context.Context, next ports.SessionStore) ([]string, error) {
	lister, ok := next.(ports.Lister)
	if !ok {
		return nil, fmt.Errorf("session store does not support listing")
	}
	return lister.List(ctx)
}
