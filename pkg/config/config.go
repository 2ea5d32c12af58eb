// Package config loads zerocom settings from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/pelletier/go-toml/v2"
)

// Environment variables read by LoadFromEnv.
const (
	EnvConfigFile  = "ZEROCOM_CONFIG_FILE"
	EnvDebug       = "ZEROCOM_DEBUG"
	EnvLogFile     = "ZEROCOM_LOG_FILE"
	EnvLogFileSize = "ZEROCOM_LOG_FILE_SIZE_MAX"
)

// DefaultConfigFile is used when EnvConfigFile is not set.
const DefaultConfigFile = "config.toml"

// Config is the complete zerocom configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Client ClientConfig `toml:"client"`
	Log    LogConfig    `toml:"log"`
	Status StatusConfig `toml:"status"`
}

// ServerConfig holds the [server] section.
type ServerConfig struct {
	IP   string `toml:"ip"`
	Port int    `toml:"port"`
	// Listen overrides IP and Port. Accepts host:port or a multiaddr such as /ip4/0.0.0.0/tcp/8888.
	Listen string `toml:"listen"`
	MOTD   string `toml:"motd"`
	// Timeout in seconds for every read and write; 0 means infinite.
	Timeout float64 `toml:"timeout"`
	// MaxConnections caps concurrent connections; 0 means unlimited.
	MaxConnections int `toml:"max-connections"`

	// Table is the nested [server.config] layout of older config files.
	// Load folds it into the fields above and clears it.
	Table *ServerTable `toml:"config"`
	// Auth is the [server.auth] table of older config files. It is parsed so those files
	// still load; connections are not authenticated.
	Auth *ServerAuth `toml:"auth"`
}

// ServerTable holds the [server.config] table. Unset keys leave the [server] values alone.
type ServerTable struct {
	IP             *string `toml:"ip"`
	Port           *int    `toml:"port"`
	MOTD           *string `toml:"motd"`
	MaxConnections *int    `toml:"max-connections"`
}

// ServerAuth holds the [server.auth] table.
type ServerAuth struct {
	Password string `toml:"password"`
}

// foldTable moves the [server.config] values into the flat fields.
func (s *ServerConfig) foldTable() {
	t := s.Table
	if t == nil {
		return
	}
	if t.IP != nil {
		s.IP = *t.IP
	}
	if t.Port != nil {
		s.Port = *t.Port
	}
	if t.MOTD != nil {
		s.MOTD = *t.MOTD
	}
	if t.MaxConnections != nil {
		s.MaxConnections = *t.MaxConnections
	}
	s.Table = nil
}

// ClientConfig holds the [client] section.
type ClientConfig struct {
	// Address of the server; defaults to the server section's address.
	Address string `toml:"address"`
	// Timeout in seconds for dialing and every read and write.
	Timeout float64 `toml:"timeout"`
	// Idle is the pause in seconds between the two connects of the reference client.
	Idle float64 `toml:"idle"`
	// Token for the connect ping; random if empty.
	Token string `toml:"token"`
}

// LogConfig holds the [log] section.
type LogConfig struct {
	Debug bool   `toml:"debug"`
	File  string `toml:"file"`
	// FileMaxSize in bytes before the log file is rotated.
	FileMaxSize int64 `toml:"file-max-size"`
}

// StatusConfig holds the [status] section.
type StatusConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "127.0.0.1",
			Port: 8888,
			MOTD: "A zerocom server",
		},
		Client: ClientConfig{
			Timeout: 3,
			Idle:    50,
		},
		Log: LogConfig{
			FileMaxSize: 1 << 20,
		},
		Status: StatusConfig{
			Listen: "127.0.0.1:8889",
		},
	}
}

// Load reads the TOML file at path on top of the defaults and validates the result.
// A missing file is not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, cfg.Validate()
	case err != nil:
		return nil, err
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%s:%d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Server.foldTable()
	return cfg, cfg.Validate()
}

// LoadFromEnv loads the file named by ZEROCOM_CONFIG_FILE (config.toml if unset) and applies
// the environment overrides.
func LoadFromEnv() (*Config, error) {
	path := DefaultConfigFile
	if v, ok := os.LookupEnv(EnvConfigFile); ok && v != "" {
		path = v
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides the log settings from the environment, read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDebug); ok {
		c.Log.Debug = parseFlag(v)
	}
	if v, ok := lookup(EnvLogFile); ok {
		c.Log.File = v
	}
	if v, ok := lookup(EnvLogFileSize); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogFileSize, err)
		}
		c.Log.FileMaxSize = n
	}
	return nil
}

// parseFlag treats anything but "", "0", "false", "no" and "off" as true.
func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}

// Validate checks value ranges and addresses.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Listen == "" && (c.Server.Port < 0 || c.Server.Port > math.MaxUint16) {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, err := c.Server.Address(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, errors.New("server.timeout must not be negative"))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, errors.New("server.max-connections must not be negative"))
	}
	if c.Client.Timeout < 0 || c.Client.Idle < 0 {
		errs = append(errs, errors.New("client.timeout and client.idle must not be negative"))
	}
	if c.Log.FileMaxSize < 0 {
		errs = append(errs, errors.New("log.file-max-size must not be negative"))
	}
	if c.Status.Enabled {
		if _, err := ResolveListenAddress(c.Status.Listen); err != nil {
			errs = append(errs, fmt.Errorf("status: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Address returns the host:port the server binds to.
func (s ServerConfig) Address() (string, error) {
	if s.Listen != "" {
		return ResolveListenAddress(s.Listen)
	}
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port)), nil
}

// TimeoutDuration returns the server timeout; 0 means infinite.
func (s ServerConfig) TimeoutDuration() time.Duration {
	return Seconds(s.Timeout)
}

// ServerAddress returns the address the client dials.
func (c *Config) ServerAddress() (string, error) {
	if c.Client.Address != "" {
		return ResolveListenAddress(c.Client.Address)
	}
	return c.Server.Address()
}

// ResolveListenAddress turns a host:port or a TCP multiaddr (/ip4/127.0.0.1/tcp/8888,
// /ip6/::1/tcp/8888) into a host:port string.
func ResolveListenAddress(addr string) (string, error) {
	if addr == "" {
		return "", errors.New("empty address")
	}
	if !strings.HasPrefix(addr, "/") {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return "", err
		}
		return addr, nil
	}

	maddr, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return "", fmt.Errorf("invalid multiaddr %q: %w", addr, err)
	}
	if _, err := maddr.ValueForProtocol(multiaddr.P_TCP); err != nil {
		return "", fmt.Errorf("multiaddr %q is not a TCP address", addr)
	}
	netAddr, err := manet.ToNetAddr(maddr)
	if err != nil {
		return "", fmt.Errorf("unsupported multiaddr %q: %w", addr, err)
	}
	return netAddr.String(), nil
}

// Seconds converts a configured number of seconds into a Duration. Non-positive values yield 0.
func Seconds(s float64) time.Duration {
	if s <= 0 || math.IsInf(s, 0) || math.IsNaN(s) {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
