package sqlexec

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"generic-role-provider/internal/core/domain"
)

// setupTestDB creates a file backed SQLite database with a small roles table.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "sqlexec.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec(`CREATE TABLE roles (Id INTEGER PRIMARY KEY AUTOINCREMENT, RoleName TEXT NOT NULL, Description TEXT)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO roles (RoleName, Description) VALUES ('admin', 'full access'), ('viewer', NULL)`).Error)
	return db
}

func openTestDatabase(t *testing.T) *Database {
	t.Helper()
	d := New(Shared(setupTestDB(t)))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDatabase_QueryManyPreservesColumnOrder(t *testing.T) {
	ctx := context.Background()
	d := openTestDatabase(t)

	seq, err := d.QueryMany(ctx, `SELECT Description, RoleName, Id FROM roles ORDER BY Id`)
	require.NoError(t, err)

	var names []string
	for record, err := range seq {
		require.NoError(t, err)
		assert.Equal(t, []string{"Description", "RoleName", "Id"}, record.Columns())

		name, err := record.String("RoleName")
		require.NoError(t, err)
		names = append(names, name)
	}
	assert.Equal(t, []string{"admin", "viewer"}, names)
}

func TestRecord_GetIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	d := openTestDatabase(t)

	record, err := d.QuerySingle(ctx, `SELECT Id, RoleName, Description FROM roles WHERE RoleName = @0`, "admin")
	require.NoError(t, err)
	require.NotNil(t, record)

	testCases := []string{"RoleName", "ROLENAME", "rolename", "rOlEnAmE"}
	for _, column := range testCases {
		value, err := record.Get(column)
		require.NoError(t, err, column)
		assert.Equal(t, "admin", value, column)
	}

	assert.Equal(t, "admin", record.At(1))
	id, err := record.Int64("id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestRecord_UnknownColumn(t *testing.T) {
	ctx := context.Background()
	d := openTestDatabase(t)

	record, err := d.QuerySingle(ctx, `SELECT RoleName FROM roles WHERE RoleName = @0`, "admin")
	require.NoError(t, err)
	require.NotNil(t, record)

	_, err = record.Get("Description")
	assert.True(t, errors.Is(err, domain.ErrUnknownColumn))

	_, err = record.String("Nope")
	assert.ErrorIs(t, err, domain.ErrUnknownColumn)
}

func TestRecord_NullIsNil(t *testing.T) {
	ctx := context.Background()
	d := openTestDatabase(t)

	record, err := d.QuerySingle(ctx, `SELECT Description FROM roles WHERE RoleName = @0`, "viewer")
	require.NoError(t, err)
	require.NotNil(t, record)

	value, err := record.Get("Description")
	require.NoError(t, err)
	assert.Nil(t, value)
	assert.Nil(t, record.At(0))

	s, err := record.String("Description")
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestRecord_Fields(t *testing.T) {
	ctx := context.Background()
	d := openTestDatabase(t)

	record, err := d.QuerySingle(ctx, `SELECT Id, RoleName FROM roles`)
	require.NoError(t, err)
	require.NotNil(t, record)

	fields := record.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "Id", fields[0].Name)
	assert.Equal(t, "RoleName", fields[1].Name)
	assert.Equal(t, "TEXT", fields[1].DatabaseType)

	// callers get copies
	fields[0].Name = "changed"
	record.Columns()[0] = "changed"
	assert.Equal(t, "Id", record.Fields()[0].Name)
	assert.Equal(t, "Id", record.Columns()[0])
}

func TestDatabase_EmptyCommandText(t *testing.T) {
	ctx := context.Background()
	d := New(func() (*gorm.DB, error) {
		t.Fatal("factory must not be called for empty command text")
		return nil, nil
	})

	_, err := d.QueryMany(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = d.Query(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = d.QuerySingle(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = d.Execute(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = d.QueryValue(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDatabase_QuerySingleNoRow(t *testing.T) {
	ctx := context.Background()
	d := openTestDatabase(t)

	record, err := d.QuerySingle(ctx, `SELECT Id FROM roles WHERE RoleName = @0`, "missing")
	require.NoError(t, err)
	assert.Nil(t, record)

	records, err := d.Query(ctx, `SELECT Id FROM roles WHERE RoleName = @0`, "missing")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDatabase_QueryValue(t *testing.T) {
	ctx := context.Background()
	d := openTestDatabase(t)

	count, err := d.QueryValue(ctx, `SELECT COUNT(*) FROM roles`)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	value, err := d.QueryValue(ctx, `SELECT Id FROM roles WHERE RoleName = @0`, "missing")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestDatabase_ExecuteBindsPositionalParameters(t *testing.T) {
	ctx := context.Background()
	d := openTestDatabase(t)

	rows, err := d.Execute(ctx, `INSERT INTO roles (RoleName, Description) VALUES (@0, @1)`, "editor", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	// nil must bind as NULL rather than the text "NULL"
	count, err := d.QueryValue(ctx, `SELECT COUNT(*) FROM roles WHERE RoleName = @0 AND Description IS NULL`, "editor")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// a value that looks like SQL stays a value
	hostile := "x'); DELETE FROM roles; --"
	_, err = d.Execute(ctx, `INSERT INTO roles (RoleName) VALUES (@0)`, hostile)
	require.NoError(t, err)

	records, err := d.Query(ctx, `SELECT RoleName FROM roles WHERE RoleName = @0`, hostile)
	require.NoError(t, err)
	require.Len(t, records, 1)
	stored, err := records[0].String("RoleName")
	require.NoError(t, err)
	assert.Equal(t, hostile, stored)

	rows, err = d.Execute(ctx, `UPDATE roles SET Description = @1 WHERE RoleName <> @0`, "admin", "updated")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)
}

func TestDatabase_QueryManyStopsEarly(t *testing.T) {
	ctx := context.Background()
	d := openTestDatabase(t)

	seq, err := d.QueryMany(ctx, `SELECT RoleName FROM roles ORDER BY Id`)
	require.NoError(t, err)

	seen := 0
	for _, err := range seq {
		require.NoError(t, err)
		seen++
		break
	}
	assert.Equal(t, 1, seen)

	// the connection is usable again once iteration stopped
	rows, err := d.Execute(ctx, `DELETE FROM roles WHERE RoleName = @0`, "viewer")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
}

func TestDatabase_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()

	never := New(Shared(setupTestDB(t)))
	assert.NoError(t, never.Close())
	assert.NoError(t, never.Close())

	d := New(Shared(setupTestDB(t)))
	require.NoError(t, d.Open(ctx))
	require.NoError(t, d.Open(ctx))
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())

	// reopens lazily after Close
	count, err := d.QueryValue(ctx, `SELECT COUNT(*) FROM roles`)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, d.Close())
}

func TestDatabase_FactoryError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	d := New(func() (*gorm.DB, error) { return nil, boom })

	_, err := d.Execute(ctx, `DELETE FROM roles`)
	assert.ErrorIs(t, err, boom)

	_, err = d.Query(ctx, `SELECT 1`)
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, d.Close())
}

func TestDatabase_Transaction(t *testing.T) {
	ctx := context.Background()
	d := openTestDatabase(t)
	boom := errors.New("boom")

	err := d.Transaction(ctx, func() error {
		if _, err := d.Execute(ctx, `INSERT INTO roles (RoleName) VALUES (@0)`, "temp"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := d.QueryValue(ctx, `SELECT COUNT(*) FROM roles WHERE RoleName = @0`, "temp")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	err = d.Transaction(ctx, func() error {
		_, err := d.Execute(ctx, `INSERT INTO roles (RoleName) VALUES (@0)`, "kept")
		return err
	})
	require.NoError(t, err)

	count, err = d.QueryValue(ctx, `SELECT COUNT(*) FROM roles WHERE RoleName = @0`, "kept")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDatabase_TableExists(t *testing.T) {
	ctx := context.Background()
	d := openTestDatabase(t)

	exists, err := d.TableExists(ctx, "roles")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = d.TableExists(ctx, "webpages_Roles")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = d.TableExists(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDatabase_BindsPlaceholdersAtAnyDelimiter(t *testing.T) {
	ctx := context.Background()
	d := openTestDatabase(t)

	testCases := []struct {
		name string
		text string
		args []any
		want string
	}{
		{"equals without spaces", `SELECT RoleName FROM roles WHERE @0=RoleName`, []any{"admin"}, "admin"},
		{"concatenation", `SELECT RoleName FROM roles WHERE RoleName LIKE @0||'%'`, []any{"adm"}, "admin"},
		{"tab", "SELECT RoleName FROM roles WHERE RoleName = @0\tAND Id = @1", []any{"viewer", 2}, "viewer"},
		{"arithmetic", `SELECT RoleName FROM roles WHERE Id = @0+0`, []any{1}, "admin"},
		{"closing parenthesis", `SELECT RoleName FROM roles WHERE Id IN (@0)`, []any{2}, "viewer"},
		{"placeholder text in a literal", `SELECT '@0' || @0`, []any{"x"}, "@0x"},
		{"question mark in a literal", `SELECT 'what?' || @0`, []any{"x"}, "what?x"},
		{"comment", "SELECT RoleName FROM roles WHERE RoleName = @0 -- or @1", []any{"admin"}, "admin"},
		{"multi digit index", `SELECT RoleName FROM roles WHERE Id = @10`, []any{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2}, "viewer"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			record, err := d.QuerySingle(ctx, tc.text, tc.args...)
			require.NoError(t, err)
			require.NotNil(t, record)
			value, err := record.String(record.Columns()[0])
			require.NoError(t, err)
			assert.Equal(t, tc.want, value)
		})
	}

	rows, err := d.Execute(ctx, `UPDATE roles SET Description=@1 WHERE RoleName=@0`, "viewer", "read only")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	seq, err := d.QueryMany(ctx, `SELECT Description FROM roles WHERE RoleName=@0`, "viewer")
	require.NoError(t, err)
	for record, err := range seq {
		require.NoError(t, err)
		description, err := record.String("Description")
		require.NoError(t, err)
		assert.Equal(t, "read only", description)
	}
}

func TestDatabase_MissingArgument(t *testing.T) {
	ctx := context.Background()
	d := New(func() (*gorm.DB, error) {
		t.Fatal("factory must not be called when an argument is missing")
		return nil, nil
	})

	_, err := d.QueryMany(ctx, `SELECT RoleName FROM roles WHERE Id = @1`, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = d.Execute(ctx, `DELETE FROM roles WHERE Id = @0`)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = d.QueryValue(ctx, `SELECT @2`, 1, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
