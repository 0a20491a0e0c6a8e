// Package config loads the role provider settings from the environment and
// the named connection strings from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"generic-role-provider/internal/adapters/driven/persistence/rolestore"
	"generic-role-provider/internal/adapters/driven/persistence/sqlexec"
	"generic-role-provider/internal/core/domain"
)

// Prefix is prepended to every environment variable, e.g. RBAC_ROLE_TABLE_NAME.
const Prefix = "RBAC"

// Config holds runtime configuration for the role provider.
type Config struct {
	ConnectionStringName string `envconfig:"CONNECTION_STRING_NAME" required:"true"`
	ConnectionsFile      string `envconfig:"CONNECTIONS_FILE" default:"connections.yaml"`

	rolestore.Mapping

	ScopedTransactions bool   `envconfig:"SCOPED_TRANSACTIONS" default:"false"`
	UUIDRoleIDs        bool   `envconfig:"UUID_ROLE_IDS" default:"false"`
	PermissionTable    string `envconfig:"PERMISSION_TABLE" default:"role_permissions"`

	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
	Addr         string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`

	// AllowedOrigins lists the CORS origins the API answers; * allows any.
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Load reads configuration from environment variables. Identifiers that are
// unset or blank take their defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	cfg.Mapping = cfg.Mapping.WithDefaults()
	if err := cfg.Mapping.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// connectionsFile mirrors the connectionStrings section of the settings file.
type connectionsFile struct {
	ConnectionStrings sqlexec.ConnectionStrings `yaml:"connectionStrings"`
}

// LoadConnectionStrings parses the named connection strings in path.
func LoadConnectionStrings(path string) (sqlexec.ConnectionStrings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read connections file: %v", domain.ErrConfiguration, err)
	}

	var file connectionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: failed to parse connections file %s: %v", domain.ErrConfiguration, path, err)
	}
	if file.ConnectionStrings == nil {
		file.ConnectionStrings = sqlexec.ConnectionStrings{}
	}
	return file.ConnectionStrings, nil
}

// Connection resolves the configured connection string from its file.
func (c *Config) Connection() (sqlexec.ConnectionString, error) {
	connections, err := LoadConnectionStrings(c.ConnectionsFile)
	if err != nil {
		return sqlexec.ConnectionString{}, err
	}
	return connections.Lookup(c.ConnectionStringName)
}
