// Package middleware provides composable wrappers around a checkpoint
// store, such as at-rest encryption.
package middleware

import "github.com/jmorenobl/soni-sub003/pkg/ports"

// Middleware wraps a checkpoint store with additional behavior.
type Middleware func(next ports.CheckpointStore) ports.CheckpointStore

// Chain applies middlewares so the first in the list is outermost.
func Chain(store ports.CheckpointStore, middlewares ...Middleware) ports.CheckpointStore {
	for i := len(middlewares) - 1; i >= 0; i-- {
		store = middlewares[i](store)
	}
	return store
}
