package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"generic-role-provider/internal/adapters/driven/persistence/rolestore"
	"generic-role-provider/internal/core/domain"
)

func writeConnections(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "connections.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RBAC_CONNECTION_STRING_NAME", "Default")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Default", cfg.ConnectionStringName)
	assert.Equal(t, "connections.yaml", cfg.ConnectionsFile)
	assert.Equal(t, rolestore.DefaultMapping(), cfg.Mapping)
	assert.False(t, cfg.ScopedTransactions)
	assert.Equal(t, "role_permissions", cfg.PermissionTable)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RBAC_CONNECTION_STRING_NAME", "Reporting")
	t.Setenv("RBAC_ROLE_TABLE_NAME", "groups")
	t.Setenv("RBAC_USER_NAME_COLUMN_OF_USER_TABLE", "login")
	t.Setenv("RBAC_SCOPED_TRANSACTIONS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "groups", cfg.RoleTableName)
	assert.Equal(t, "login", cfg.UserNameColumnOfUserTable)
	assert.Equal(t, rolestore.DefaultUsersInRoleTableName, cfg.UsersInRoleTableName)
	assert.True(t, cfg.ScopedTransactions)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing connection name", func(t *testing.T) {
		t.Setenv("RBAC_CONNECTION_STRING_NAME", "")
		os.Unsetenv("RBAC_CONNECTION_STRING_NAME")

		_, err := Load()
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

}

func TestLoad_BlankIdentifiersTakeDefaults(t *testing.T) {
	t.Setenv("RBAC_CONNECTION_STRING_NAME", "Default")
	t.Setenv("RBAC_USERS_IN_ROLE_TABLE_NAME", "   ")
	t.Setenv("RBAC_ROLE_NAME_COLUMN_OF_ROLE_TABLE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, rolestore.DefaultUsersInRoleTableName, cfg.UsersInRoleTableName)
	assert.Equal(t, rolestore.DefaultRoleNameColumnOfRoleTable, cfg.RoleNameColumnOfRoleTable)
	assert.Equal(t, rolestore.DefaultMapping(), cfg.Mapping)
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("RBAC_CONNECTION_STRING_NAME", "Default")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)

	t.Setenv("RBAC_CORS_ALLOWED_ORIGINS", "https://admin.example.com,https://ops.example.com")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://admin.example.com", "https://ops.example.com"}, cfg.AllowedOrigins)
}

func TestLoadConnectionStrings(t *testing.T) {
	path := writeConnections(t, `
connectionStrings:
  Default:
    providerName: sqlite3
    connectionString: file:roles.db
  Reporting:
    providerName: postgres
    connectionString: host=db user=report dbname=roles
`)

	connections, err := LoadConnectionStrings(path)
	require.NoError(t, err)
	require.Len(t, connections, 2)

	cs, err := connections.Lookup("Reporting")
	require.NoError(t, err)
	assert.Equal(t, "Reporting", cs.Name)
	assert.Equal(t, "postgres", cs.ProviderName)
	assert.Equal(t, "host=db user=report dbname=roles", cs.ConnectionString)

	_, err = connections.Lookup("Missing")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)

	_, err = LoadConnectionStrings(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = LoadConnectionStrings(writeConnections(t, "connectionStrings: [not, a, map]"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestConfig_Connection(t *testing.T) {
	cfg := &Config{
		ConnectionStringName: "Default",
		ConnectionsFile:      writeConnections(t, "connectionStrings:\n  Default:\n    providerName: sqlite\n    connectionString: file:roles.db\n"),
	}

	cs, err := cfg.Connection()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cs.ProviderName)

	cfg.ConnectionStringName = "Other"
	_, err = cfg.Connection()
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}
