package store

import (
	"context"
	"database/sql"
)

// The stores take the narrowest handle each query needs, so trade and
// cash writes can run on a transaction while reads like portfolio and
// history go straight to the pool.

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// DB is the pool-backed handle the store constructors take.
type DB interface {
	Execer
	Getter
	Selecter
}

// Tx is what buy/sell closures hand to row-locking reads and writes.
type Tx interface {
	Execer
	Getter
}
