package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// txScope is the transaction an ambient scope carries; the pgx.Tx is bound
// to the connection it was begun on.
// It is never stored process-wide or goroutine-locally: it only ever lives
// in a context.Context value, so it is naturally isolated per concurrent
// request without any shared mutable state to synchronize.
type txScope struct {
	tx pgx.Tx
}

type txScopeKey struct{}

// WithTx returns a context carrying tx as the ambient scope for any Append
// call made with it. Nesting replaces the current scope; the caller that
// installed the outermost scope owns commit/rollback.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txScopeKey{}, &txScope{tx: tx})
}

// scopeFromContext returns the ambient transaction, if one was set with
// WithTx, and whether it was found.
func scopeFromContext(ctx context.Context) (pgx.Tx, bool) {
	scope, ok := ctx.Value(txScopeKey{}).(*txScope)
	if !ok || scope == nil {
		return nil, false
	}
	return scope.tx, true
}
