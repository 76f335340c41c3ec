package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joacominatel/pgbrowse/internal/database"
)

// Config represents the application configuration.
type Config struct {
	Connections []Connection `mapstructure:"connections" yaml:"connections"`
	Preferences Preferences  `mapstructure:"preferences" yaml:"preferences"`
}

// Connection represents a saved connection profile. The password lives in
// the OS keyring, keyed by Name.
type Connection struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port,omitempty"`
	Username string `mapstructure:"username" yaml:"username"`
	Database string `mapstructure:"database" yaml:"database,omitempty"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode,omitempty"`
}

// Preferences holds user preferences.
type Preferences struct {
	Theme             string `mapstructure:"theme" yaml:"theme"`
	DefaultConnection string `mapstructure:"default_connection" yaml:"default_connection"`
	LogLevel          string `mapstructure:"log_level" yaml:"log_level"`
}

// Descriptor builds the base connection descriptor for the profile. The
// profile's Database is deliberately left out: the target database is merged
// per request.
func (c Connection) Descriptor(secrets Secrets) (database.Descriptor, error) {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	parts := []string{"host=" + quoteValue(host)}
	if c.Username != "" {
		parts = append(parts, "user="+quoteValue(c.Username))
	}
	if c.Port > 0 {
		parts = append(parts, "port="+strconv.Itoa(c.Port))
	}
	if c.SSLMode != "" {
		parts = append(parts, "sslmode="+quoteValue(c.SSLMode))
	}
	if secrets != nil && c.Name != "" {
		password, err := secrets.Password(c.Name)
		if err != nil {
			return "", fmt.Errorf("password for %q: %w", c.Name, err)
		}
		if password != "" {
			parts = append(parts, "password="+quoteValue(password))
		}
	}
	return database.Descriptor(strings.Join(parts, " ")), nil
}

// DisplayString returns a human-readable summary of the connection.
func (c Connection) DisplayString() string {
	s := c.Host
	if c.Port > 0 {
		s += ":" + strconv.Itoa(c.Port)
	}
	if c.Database != "" {
		s += "/" + c.Database
	}
	if c.Username != "" {
		s = c.Username + "@" + s
	}
	return s
}

// ParseDescriptor reads a key/value descriptor back into a profile. Keys the
// profile has no field for are ignored; the password is returned separately
// so callers can hand it to the keyring.
func ParseDescriptor(s string) (Connection, string, error) {
	settings, err := parseSettings(s)
	if err != nil {
		return Connection{}, "", fmt.Errorf("invalid descriptor: %w", err)
	}

	conn := Connection{
		Host:     settings["host"],
		Username: settings["user"],
		Database: settings["dbname"],
		SSLMode:  settings["sslmode"],
	}
	if p := settings["port"]; p != "" {
		conn.Port, err = strconv.Atoi(p)
		if err != nil {
			return Connection{}, "", fmt.Errorf("invalid descriptor: port %q", p)
		}
	}
	if conn.Host == "" {
		conn.Host = "localhost"
	}

	conn.Name = fmt.Sprintf("postgres-%s-%s", conn.Host, conn.Username)
	return conn, settings["password"], nil
}

// HasConnection checks if a connection with the given name already exists.
func (cfg *Config) HasConnection(name string) bool {
	return cfg.Connection(name) != nil
}

// Connection returns the profile with the given name, or nil.
func (cfg *Config) Connection(name string) *Connection {
	for i := range cfg.Connections {
		if cfg.Connections[i].Name == name {
			return &cfg.Connections[i]
		}
	}
	return nil
}

// AddConnection appends a connection, replacing an existing one with the
// same name.
func (cfg *Config) AddConnection(conn Connection) {
	if existing := cfg.Connection(conn.Name); existing != nil {
		*existing = conn
		return
	}
	cfg.Connections = append(cfg.Connections, conn)
}

// quoteValue quotes a descriptor value when it is empty or contains spaces,
// quotes or backslashes.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func parseSettings(s string) (map[string]string, error) {
	settings := make(map[string]string)
	s = strings.TrimSpace(s)

	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			return nil, fmt.Errorf("missing '=' after %q", s)
		}
		key := strings.TrimSpace(s[:eq])
		if key == "" || strings.ContainsAny(key, " \t") {
			return nil, fmt.Errorf("bad key %q", key)
		}
		s = strings.TrimLeft(s[eq+1:], " \t")

		var val string
		if strings.HasPrefix(s, "'") {
			var b strings.Builder
			i := 1
			closed := false
			for ; i < len(s); i++ {
				switch s[i] {
				case '\\':
					i++
					if i < len(s) {
						b.WriteByte(s[i])
					}
				case '\'':
					closed = true
				default:
					b.WriteByte(s[i])
				}
				if closed {
					break
				}
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quoted value for %q", key)
			}
			val = b.String()
			s = s[i+1:]
		} else {
			end := strings.IndexAny(s, " \t")
			if end < 0 {
				end = len(s)
			}
			val = s[:end]
			s = s[end:]
		}

		settings[key] = val
		s = strings.TrimLeft(s, " \t")
	}
	return settings, nil
}
