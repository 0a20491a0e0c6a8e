package rolestore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"

	"generic-role-provider/internal/core/domain"
)

func TestMapping_Validate(t *testing.T) {
	assert.NoError(t, DefaultMapping().Validate())

	var empty Mapping
	err := empty.Validate()
	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "UserTableName")
	assert.Contains(t, err.Error(), "RoleIDColumnOfUserInRoleTable")

	m := DefaultMapping()
	m.RoleNameColumnOfRoleTable = " \t"
	err = m.Validate()
	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "RoleNameColumnOfRoleTable")
	assert.NotContains(t, err.Error(), "UserTableName")

	// Validate must not modify the receiver
	assert.Equal(t, " \t", m.RoleNameColumnOfRoleTable)
}

func TestMapping_WithDefaults(t *testing.T) {
	m := Mapping{
		UserTableName:             "accounts",
		RoleNameColumnOfRoleTable: "  ",
	}.WithDefaults()

	assert.Equal(t, "accounts", m.UserTableName)
	assert.Equal(t, DefaultRoleNameColumnOfRoleTable, m.RoleNameColumnOfRoleTable)
	assert.Equal(t, DefaultRoleTableName, m.RoleTableName)
	assert.Equal(t, DefaultUsersInRoleTableName, m.UsersInRoleTableName)
	assert.NoError(t, m.Validate())
	assert.Equal(t, DefaultMapping(), Mapping{}.WithDefaults())
}

func TestMapping_QuotesForDialect(t *testing.T) {
	m := DefaultMapping()
	m.UsersInRoleTableName = "user roles"

	lite := m.quote(sqlite.Open(""))
	assert.Equal(t, "`User`", lite.userTable)
	assert.Equal(t, "`user roles`", lite.usersInRoleTable)

	pg := m.quote(postgres.New(postgres.Config{DSN: "host=localhost"}))
	assert.Equal(t, `"User"`, pg.userTable)
	assert.Equal(t, `"RoleName"`, pg.roleNameOfRole)
}

func TestMapping_DotQualifiesSchema(t *testing.T) {
	m := DefaultMapping()
	m.RoleTableName = "dbo.webpages_Roles"
	m.UsersInRoleTableName = "user@0roles"

	pg := m.quote(postgres.New(postgres.Config{DSN: "host=localhost"}))
	assert.Equal(t, `"dbo"."webpages_Roles"`, pg.roleTable)
	assert.Equal(t, `"user@0roles"`, pg.usersInRoleTable)

	lite := m.quote(sqlite.Open(""))
	assert.Equal(t, "`dbo`.`webpages_Roles`", lite.roleTable)
}

func TestStatements_OnlyBindValues(t *testing.T) {
	sql := newStatements(DefaultMapping().quote(sqlite.Open("")), false)

	assert.Equal(t, "SELECT `Id` FROM `User` WHERE (`UserName` = @0)", sql.findUserID)
	assert.Equal(t, "INSERT INTO `webpages_Roles` (`RoleName`) VALUES (@0)", sql.insertRole)
	assert.True(t, strings.HasSuffix(sql.rolesForUser, "GROUP BY r.`RoleName`"))
	assert.Contains(t, sql.findUsersInRole, "u.`UserName` LIKE @1)")

	explicit := newStatements(DefaultMapping().quote(sqlite.Open("")), true)
	assert.Equal(t, "INSERT INTO `webpages_Roles` (`Id`, `RoleName`) VALUES (@0, @1)", explicit.insertRole)
}
