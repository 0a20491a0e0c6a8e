// Package sqlexec runs parameterized command text against a single
// dedicated connection and hands rows back as schema-agnostic Records.
//
// Command text is executed as given. Only argument values are protected:
// argument i is bound wherever @i appears outside quoted text and comments,
// whatever follows it, so callers write
//
//	db.Query(ctx, "SELECT Id FROM Roles WHERE RoleName = @0", name)
//
// and must quote any identifiers they interpolate themselves.
package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"gorm.io/gorm"

	"generic-role-provider/internal/core/domain"
)

// Factory returns the connection pool a Database draws its dedicated
// connection from. The pool is owned by the caller.
type Factory func() (*gorm.DB, error)

// Shared returns a Factory that always hands out db.
func Shared(db *gorm.DB) Factory {
	return func() (*gorm.DB, error) {
		return db, nil
	}
}

// Database executes statements on one lazily opened connection. It is not
// safe for concurrent use; open one per unit of work and Close it.
type Database struct {
	factory Factory
	conn    *sql.Conn
	db      *gorm.DB // bound to conn, or to the open transaction
}

// New creates a Database that opens its connection on first use.
func New(factory Factory) *Database {
	return &Database{factory: factory}
}

// Open acquires the dedicated connection if it is not already held.
func (d *Database) Open(ctx context.Context) error {
	if d.conn != nil {
		return nil
	}
	if d.factory == nil {
		return fmt.Errorf("%w: no connection factory", domain.ErrConfiguration)
	}

	pool, err := d.factory()
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return fmt.Errorf("failed to access connection pool: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}

	// Context forces a cloned statement so the pool's own statement is
	// never rebound to conn.
	session := pool.Session(&gorm.Session{NewDB: true, Context: ctx})
	session.Statement.ConnPool = conn

	d.conn = conn
	d.db = session
	return nil
}

// Close releases the connection. It is safe to call more than once, or on a
// Database that was never opened.
func (d *Database) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	d.db = nil
	return err
}

// Dialector returns the dialect of the opened connection.
func (d *Database) Dialector(ctx context.Context) (gorm.Dialector, error) {
	if err := d.Open(ctx); err != nil {
		return nil, err
	}
	return d.db.Dialector, nil
}

// QueryMany runs commandText and returns a single-pass sequence over its
// rows. The statement runs when the sequence is ranged over and its
// resources are released when iteration stops.
func (d *Database) QueryMany(ctx context.Context, commandText string, args ...any) (iter.Seq2[*Record, error], error) {
	cmd, err := prepare(commandText, args)
	if err != nil {
		return nil, err
	}

	return func(yield func(*Record, error) bool) {
		if err := d.Open(ctx); err != nil {
			yield(nil, err)
			return
		}

		query, vars := cmd.expr()
		rows, err := d.session(ctx).Raw(query, vars...).Rows()
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		var s *shape
		for rows.Next() {
			if s == nil {
				if s, err = newShape(rows); err != nil {
					yield(nil, err)
					return
				}
			}

			values := make([]any, len(s.columns))
			dest := make([]any, len(values))
			for i := range values {
				dest[i] = &values[i]
			}
			if err := rows.Scan(dest...); err != nil {
				yield(nil, err)
				return
			}
			if !yield(&Record{shape: s, values: values}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}, nil
}

// Query runs commandText and returns every row.
func (d *Database) Query(ctx context.Context, commandText string, args ...any) ([]*Record, error) {
	seq, err := d.QueryMany(ctx, commandText, args...)
	if err != nil {
		return nil, err
	}

	var records []*Record
	for record, err := range seq {
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// QuerySingle returns the first row, or a nil Record when there is none.
func (d *Database) QuerySingle(ctx context.Context, commandText string, args ...any) (*Record, error) {
	seq, err := d.QueryMany(ctx, commandText, args...)
	if err != nil {
		return nil, err
	}

	for record, err := range seq {
		return record, err
	}
	return nil, nil
}

// Execute runs a data modification statement and returns the number of
// affected rows.
func (d *Database) Execute(ctx context.Context, commandText string, args ...any) (int64, error) {
	cmd, err := prepare(commandText, args)
	if err != nil {
		return 0, err
	}
	if err := d.Open(ctx); err != nil {
		return 0, err
	}

	query, vars := cmd.expr()
	result := d.session(ctx).Exec(query, vars...)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// QueryValue returns the first column of the first row, or nil when the
// statement returns no rows.
func (d *Database) QueryValue(ctx context.Context, commandText string, args ...any) (any, error) {
	cmd, err := prepare(commandText, args)
	if err != nil {
		return nil, err
	}
	if err := d.Open(ctx); err != nil {
		return nil, err
	}

	var value any
	query, vars := cmd.expr()
	err = d.session(ctx).Raw(query, vars...).Row().Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Transaction runs fn with every statement issued through d inside one
// transaction on the dedicated connection. fn's error rolls it back.
func (d *Database) Transaction(ctx context.Context, fn func() error) error {
	if err := d.Open(ctx); err != nil {
		return err
	}

	outer := d.db
	defer func() { d.db = outer }()

	return outer.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d.db = tx
		return fn()
	})
}

// TableExists reports whether the named table exists.
func (d *Database) TableExists(ctx context.Context, tableName string) (bool, error) {
	if tableName == "" {
		return false, fmt.Errorf("%w: tableName", domain.ErrInvalidInput)
	}
	if err := d.Open(ctx); err != nil {
		return false, err
	}
	return d.session(ctx).Migrator().HasTable(tableName), nil
}

func (d *Database) session(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

// prepare rejects empty command text and splits the rest around its @i
// placeholders.
func prepare(commandText string, args []any) (command, error) {
	if commandText == "" {
		return command{}, fmt.Errorf("%w: commandText", domain.ErrInvalidInput)
	}
	return parseCommand(commandText, args)
}
