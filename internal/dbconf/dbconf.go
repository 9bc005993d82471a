// Package dbconf holds the process-wide active database configuration and
// the pooled connections opened against it.
package dbconf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	EngineSQLite   = "sqlite3"
	EnginePostgres = "postgresql"
	EngineMySQL    = "mysql"
)

// Settings describes one database the Django project can point at. Name is
// a file path for SQLite and a connection URL otherwise.
type Settings struct {
	Engine string
	Name   string
}

// SQLite returns settings for a SQLite file.
func SQLite(path string) Settings {
	return Settings{Engine: EngineSQLite, Name: path}
}

// FromProvider builds settings from a configured provider and URL.
func FromProvider(provider, url string) Settings {
	switch provider {
	case "sqlite", "sqlite3":
		return Settings{Engine: EngineSQLite, Name: strings.TrimPrefix(url, "sqlite://")}
	case "mysql":
		return Settings{Engine: EngineMySQL, Name: url}
	default:
		return Settings{Engine: EnginePostgres, Name: url}
	}
}

// URL renders the settings in the DATABASE_URL form understood by the
// Django settings module.
func (s Settings) URL() string {
	switch s.Engine {
	case EngineSQLite:
		if strings.HasPrefix(s.Name, "sqlite://") {
			return s.Name
		}
		return "sqlite:///" + s.Name
	default:
		return s.Name
	}
}

func (s Settings) String() string {
	if s.Engine == EngineSQLite {
		return s.Engine + ":" + s.Name
	}
	return s.Engine
}

// Connections tracks the active settings and every pool opened against
// them. Closing the pools before and after a swap keeps no connection bound
// to the wrong database.
type Connections struct {
	mu     sync.Mutex
	active Settings
	pools  []io.Closer
}

func New(active Settings) *Connections {
	return &Connections{active: active}
}

func (c *Connections) Active() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Register adds a pool that CloseAll must close.
func (c *Connections) Register(pool io.Closer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools = append(c.pools, pool)
}

// CloseAll closes and forgets every registered pool.
func (c *Connections) CloseAll() error {
	c.mu.Lock()
	pools := c.pools
	c.pools = nil
	c.mu.Unlock()

	var errs []error
	for _, p := range pools {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Override runs fn with settings as the active configuration. The previous
// configuration is restored and the pools are closed on every exit path,
// including a panic inside fn.
func (c *Connections) Override(ctx context.Context, settings Settings, fn func(context.Context) error) (err error) {
	c.mu.Lock()
	saved := c.active
	c.active = settings
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.active = saved
		c.mu.Unlock()
		if closeErr := c.CloseAll(); closeErr != nil {
			logrus.WithError(closeErr).Warn("closing connections after override")
		}
	}()

	logrus.WithField("database", settings.String()).Debug("database override active")
	if err := c.CloseAll(); err != nil {
		return fmt.Errorf("failed to close connections before override: %w", err)
	}
	return fn(ctx)
}

// Env returns the environment entries that point a Django subprocess at the
// active settings.
func (c *Connections) Env(urlEnv string) []string {
	if urlEnv == "" {
		urlEnv = "DATABASE_URL"
	}
	active := c.Active()
	return []string{
		urlEnv + "=" + active.URL(),
		"DATABASE_ENGINE=" + active.Engine,
	}
}
