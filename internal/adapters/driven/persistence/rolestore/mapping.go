package rolestore

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm/clause"

	"generic-role-provider/internal/core/domain"
)

// Default identifiers, matching the ASP.NET simple membership schema.
const (
	DefaultRoleTableName                 = "webpages_Roles"
	DefaultUsersInRoleTableName          = "webpages_UsersInRoles"
	DefaultUserTableName                 = "User"
	DefaultRoleIDColumnOfRoleTable       = "Id"
	DefaultRoleIDColumnOfUserInRoleTable = "RoleId"
	DefaultUserIDColumnOfUserTable       = "Id"
	DefaultUserIDColumnOfUserInRoleTable = "UserId"
	DefaultUserNameColumnOfUserTable     = "UserName"
	DefaultRoleNameColumnOfRoleTable     = "RoleName"
)

// Mapping names every table and column the store touches.
//
// Names are quoted with the dialect's QuoteTo, which treats a dot as a
// qualifier separator: "dbo.webpages_Roles" names table webpages_Roles in
// schema dbo. Any other character, @ included, is part of the name.
type Mapping struct {
	UserTableName        string `validate:"required" envconfig:"USER_TABLE_NAME" default:"User"`
	RoleTableName        string `validate:"required" envconfig:"ROLE_TABLE_NAME" default:"webpages_Roles"`
	UsersInRoleTableName string `validate:"required" envconfig:"USERS_IN_ROLE_TABLE_NAME" default:"webpages_UsersInRoles"`

	UserIDColumnOfUserTable   string `validate:"required" envconfig:"USER_ID_COLUMN_OF_USER_TABLE" default:"Id"`
	UserNameColumnOfUserTable string `validate:"required" envconfig:"USER_NAME_COLUMN_OF_USER_TABLE" default:"UserName"`

	RoleIDColumnOfRoleTable   string `validate:"required" envconfig:"ROLE_ID_COLUMN_OF_ROLE_TABLE" default:"Id"`
	RoleNameColumnOfRoleTable string `validate:"required" envconfig:"ROLE_NAME_COLUMN_OF_ROLE_TABLE" default:"RoleName"`

	UserIDColumnOfUserInRoleTable string `validate:"required" envconfig:"USER_ID_COLUMN_OF_USER_IN_ROLE_TABLE" default:"UserId"`
	RoleIDColumnOfUserInRoleTable string `validate:"required" envconfig:"ROLE_ID_COLUMN_OF_USER_IN_ROLE_TABLE" default:"RoleId"`
}

// DefaultMapping returns the mapping for the default schema.
func DefaultMapping() Mapping {
	return Mapping{
		UserTableName:                 DefaultUserTableName,
		RoleTableName:                 DefaultRoleTableName,
		UsersInRoleTableName:          DefaultUsersInRoleTableName,
		UserIDColumnOfUserTable:       DefaultUserIDColumnOfUserTable,
		UserNameColumnOfUserTable:     DefaultUserNameColumnOfUserTable,
		RoleIDColumnOfRoleTable:       DefaultRoleIDColumnOfRoleTable,
		RoleNameColumnOfRoleTable:     DefaultRoleNameColumnOfRoleTable,
		UserIDColumnOfUserInRoleTable: DefaultUserIDColumnOfUserInRoleTable,
		RoleIDColumnOfUserInRoleTable: DefaultRoleIDColumnOfUserInRoleTable,
	}
}

// WithDefaults returns a copy of m where every blank identifier is replaced
// by its default.
func (m Mapping) WithDefaults() Mapping {
	def := DefaultMapping()
	pick := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return v
	}
	return Mapping{
		UserTableName:                 pick(m.UserTableName, def.UserTableName),
		RoleTableName:                 pick(m.RoleTableName, def.RoleTableName),
		UsersInRoleTableName:          pick(m.UsersInRoleTableName, def.UsersInRoleTableName),
		UserIDColumnOfUserTable:       pick(m.UserIDColumnOfUserTable, def.UserIDColumnOfUserTable),
		UserNameColumnOfUserTable:     pick(m.UserNameColumnOfUserTable, def.UserNameColumnOfUserTable),
		RoleIDColumnOfRoleTable:       pick(m.RoleIDColumnOfRoleTable, def.RoleIDColumnOfRoleTable),
		RoleNameColumnOfRoleTable:     pick(m.RoleNameColumnOfRoleTable, def.RoleNameColumnOfRoleTable),
		UserIDColumnOfUserInRoleTable: pick(m.UserIDColumnOfUserInRoleTable, def.UserIDColumnOfUserInRoleTable),
		RoleIDColumnOfUserInRoleTable: pick(m.RoleIDColumnOfUserInRoleTable, def.RoleIDColumnOfUserInRoleTable),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports every blank identifier as a configuration error.
func (m Mapping) Validate() error {
	trimmed := m
	v := reflect.ValueOf(&trimmed).Elem()
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		f.SetString(strings.TrimSpace(f.String()))
	}

	err := validate.Struct(trimmed)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	return fmt.Errorf("%w: %s cannot be empty", domain.ErrConfiguration, strings.Join(missing, ", "))
}

// Quoter writes a string quoted as an SQL identifier. Every gorm.Dialector
// is a Quoter.
type Quoter interface {
	QuoteTo(clause.Writer, string)
}

// quotedMapping holds the mapping's identifiers quoted for one dialect.
// Only these values are ever interpolated into command text.
type quotedMapping struct {
	userTable        string
	roleTable        string
	usersInRoleTable string

	userIDOfUser   string
	userNameOfUser string
	roleIDOfRole   string
	roleNameOfRole string

	userIDOfUserInRole string
	roleIDOfUserInRole string
}

func (m Mapping) quote(q Quoter) quotedMapping {
	quote := func(name string) string {
		var b strings.Builder
		q.QuoteTo(&b, name)
		return b.String()
	}
	return quotedMapping{
		userTable:          quote(m.UserTableName),
		roleTable:          quote(m.RoleTableName),
		usersInRoleTable:   quote(m.UsersInRoleTableName),
		userIDOfUser:       quote(m.UserIDColumnOfUserTable),
		userNameOfUser:     quote(m.UserNameColumnOfUserTable),
		roleIDOfRole:       quote(m.RoleIDColumnOfRoleTable),
		roleNameOfRole:     quote(m.RoleNameColumnOfRoleTable),
		userIDOfUserInRole: quote(m.UserIDColumnOfUserInRoleTable),
		roleIDOfUserInRole: quote(m.RoleIDColumnOfUserInRoleTable),
	}
}
