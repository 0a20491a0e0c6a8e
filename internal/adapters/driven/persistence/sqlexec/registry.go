package sqlexec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	sqlite3 "gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"

	"generic-role-provider/internal/core/domain"
)

// DialectorOpener returns a gorm.Dialector for a connection string.
type DialectorOpener = func(string) gorm.Dialector

var (
	registryMu sync.RWMutex
	providers  = make(map[string]DialectorOpener)
)

func init() {
	Register("sqlite3", sqlite3.Open)
	Register("sqlite", sqlite.Open)
	Register("postgres", postgres.Open)
	Register("mysql", mysql.Open)
	Register("sqlserver", sqlserver.Open)
}

// Register adds a provider under name, replacing any previous one.
func Register(name string, opener DialectorOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	providers[name] = opener
}

// Providers lists the registered provider names.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConnectionString is one named entry of the connection string settings.
type ConnectionString struct {
	Name             string `yaml:"-"`
	ProviderName     string `yaml:"providerName"`
	ConnectionString string `yaml:"connectionString"`
}

// ConnectionStrings holds the named connection string settings.
type ConnectionStrings map[string]ConnectionString

// Lookup returns the connection string registered under name.
func (cs ConnectionStrings) Lookup(name string) (ConnectionString, error) {
	if name == "" {
		return ConnectionString{}, fmt.Errorf("%w: connection string name", domain.ErrInvalidInput)
	}
	c, ok := cs[name]
	if !ok {
		return ConnectionString{}, fmt.Errorf("%w: %s", domain.ErrConnectionNotFound, name)
	}
	c.Name = name
	return c, nil
}

// Dialector resolves the provider and returns its dialector.
func (c ConnectionString) Dialector() (gorm.Dialector, error) {
	if c.ConnectionString == "" {
		return nil, fmt.Errorf("%w: connection string %q is empty", domain.ErrConfiguration, c.Name)
	}

	registryMu.RLock()
	opener, ok := providers[c.ProviderName]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q for connection %q", domain.ErrConfiguration, c.ProviderName, c.Name)
	}
	return opener(c.ConnectionString), nil
}

// Open opens the connection pool described by c.
func (c ConnectionString) Open(cfg *gorm.Config) (*gorm.DB, error) {
	dialector, err := c.Dialector()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &gorm.Config{}
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection %q: %w", c.Name, err)
	}
	return db, nil
}
