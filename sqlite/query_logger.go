package sqlite

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// QueryLogger logs each statement at debug level before handing it to
// Queryer.
type QueryLogger struct {
	Queryer sqlx.QueryerContext
	Logger  *slog.Logger
}

var _ sqlx.QueryerContext = (*QueryLogger)(nil)

func (p *QueryLogger) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	p.log(ctx, query, args)
	return p.Queryer.QueryContext(ctx, query, args...)
}

func (p *QueryLogger) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	p.log(ctx, query, args)
	return p.Queryer.QueryxContext(ctx, query, args...)
}

func (p *QueryLogger) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	p.log(ctx, query, args)
	return p.Queryer.QueryRowxContext(ctx, query, args...)
}

func (p *QueryLogger) log(ctx context.Context, query string, args []interface{}) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "SQL",
		slog.String("query", query),
		slog.Any("args", args),
	)
}
