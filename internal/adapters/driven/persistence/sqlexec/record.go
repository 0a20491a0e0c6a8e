package sqlexec

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"

	"generic-role-provider/internal/core/domain"
)

// Field describes one column of a result set.
type Field struct {
	Name         string
	DatabaseType string
	ScanType     reflect.Type
}

// shape is captured once per result set and shared by all of its records.
type shape struct {
	columns []string
	fields  []Field
	index   map[string]int // lower-cased column name -> first ordinal
}

func newShape(rows *sql.Rows) (*shape, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read column names: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	s := &shape{
		columns: columns,
		fields:  make([]Field, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, name := range columns {
		s.fields[i] = Field{Name: name}
		if i < len(types) && types[i] != nil {
			s.fields[i].DatabaseType = types[i].DatabaseTypeName()
			s.fields[i].ScanType = types[i].ScanType()
		}
		key := strings.ToLower(name)
		if _, seen := s.index[key]; !seen {
			s.index[key] = i
		}
	}
	return s, nil
}

// Record is a read-only view over one fetched row. Column lookups by name
// are case-insensitive and SQL NULL is reported as nil.
type Record struct {
	shape  *shape
	values []any
}

// Columns returns the ordered column names of the result set.
func (r *Record) Columns() []string {
	return append([]string(nil), r.shape.columns...)
}

// Fields returns the name and type of each column, in column order.
func (r *Record) Fields() []Field {
	return append([]Field(nil), r.shape.fields...)
}

// Get returns the value of the named column.
func (r *Record) Get(name string) (any, error) {
	i, ok := r.shape.index[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w %s", domain.ErrUnknownColumn, name)
	}
	return r.values[i], nil
}

// At returns the value at ordinal i. The ordinal is not checked.
func (r *Record) At(i int) any {
	return r.values[i]
}

// String returns the named column converted to a string. NULL yields "".
func (r *Record) String(name string) (string, error) {
	v, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return cast.ToStringE(v)
}

// Int64 returns the named column converted to an int64. NULL yields 0.
func (r *Record) Int64(name string) (int64, error) {
	v, err := r.Get(name)
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

func toInt64(v any) (int64, error) {
	// some drivers hand numeric aggregates back as text
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	return cast.ToInt64E(v)
}
