package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Repositories write through Tx when it is set and fall back to their own
// connection otherwise.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// New returns a Context bound to tx.
func New(ctx context.Context, tx *gorm.DB) Context {
	return Context{Ctx: ctx, Tx: tx}
}

// Background returns a Context with no transaction.
func Background(ctx context.Context) Context {
	return Context{Ctx: ctx}
}

// DB resolves the handle a repository should use.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if c.Tx != nil {
		return c.Tx.WithContext(ctx)
	}
	return fallback.WithContext(ctx)
}

// InTx reports whether the context carries a transaction.
func (c Context) InTx() bool {
	return c.Tx != nil
}
