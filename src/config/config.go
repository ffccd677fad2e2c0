package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ucoin-io/ucoind/src/common"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultConfigFile is the default name of the configuration file, without
	// extension
	DefaultConfigFile = "ucoind"
)

// Default configuration values.
const (
	DefaultLogLevel     = "debug"
	DefaultBindAddr     = "127.0.0.1:1337"
	DefaultServiceAddr  = "127.0.0.1:8000"
	DefaultTCPTimeout   = 1000 * time.Millisecond
	DefaultSyncInterval = 10 * time.Second
	DefaultCacheSize    = 10000
	DefaultSyncLimit    = 100
	DefaultMaxPool      = 2
	DefaultStore        = false
	DefaultCurrency     = "beta_brousouf"
	DefaultWindowSize   = 3
	DefaultBranchGrace  = 10
	DefaultMinNewVoters = 0
)

// Config contains all the configuration properties of a ucoind node.
type Config struct {
	// DataDir is the top-level directory containing ucoind configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// BindAddr is the local address:port where this node serves pull requests
	// from other nodes. In some cases, there may be a routable address that
	// cannot be bound. Use AdvertiseAddr to advertise a different address to
	// support this.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// MaxPool controls how many connections are pooled per target.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of pull RPC connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// SyncLimit defines the max number of amendments to include in a
	// PullResponse
	SyncLimit int `mapstructure:"sync-limit"`

	// SyncInterval is the period at which the node pulls from its peers and
	// prunes stale branches. Zero disables periodic sync.
	SyncInterval time.Duration `mapstructure:"sync-interval"`

	// Currency is the name of the currency this node keeps amendments for.
	// Statements for other currencies are rejected.
	Currency string `mapstructure:"currency"`

	// WindowSize is the fork window: the number of amendments a branch head
	// may lag the best known head and still be ACTIVE.
	WindowSize int `mapstructure:"window"`

	// BranchGrace is the number of amendments, beyond WindowSize, a STALE
	// branch may lag before it is discarded.
	BranchGrace int `mapstructure:"branch-grace"`

	// MinNewVoters is the minimum number of new voters an amendment must
	// carry.
	MinNewVoters int `mapstructure:"min-new-voters"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// CacheSize is the max number of items in in-memory caches.
	CacheSize int `mapstructure:"cache-size"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// Key is the private key of the node. It signs the amendments' statements
	// the node issues itself.
	Key *ecdsa.PrivateKey `mapstructure:"-"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:      DefaultDataDir(),
		LogLevel:     DefaultLogLevel,
		BindAddr:     DefaultBindAddr,
		ServiceAddr:  DefaultServiceAddr,
		TCPTimeout:   DefaultTCPTimeout,
		SyncInterval: DefaultSyncInterval,
		CacheSize:    DefaultCacheSize,
		SyncLimit:    DefaultSyncLimit,
		MaxPool:      DefaultMaxPool,
		Store:        DefaultStore,
		DatabaseDir:  DefaultDatabaseDir(),
		Currency:     DefaultCurrency,
		WindowSize:   DefaultWindowSize,
		BranchGrace:  DefaultBranchGrace,
		MinNewVoters: DefaultMinNewVoters,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests. Periodic sync is disabled.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.SyncInterval = 0
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level ucoind directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// ConfigFile returns the full path of the toml configuration file.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, DefaultConfigFile+".toml")
}

// Logger returns a formatted logrus Entry, with prefix set to "ucoind".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "ucoind")
}

// SetLogger replaces the logger returned by Logger.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level ucoind config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Ucoind")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Ucoind")
		} else {
			return filepath.Join(home, ".ucoind")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
