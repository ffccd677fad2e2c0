package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

var forceConfig bool

//NewConfigCmd returns the command that writes the configuration file
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Write the configuration file to [datadir]/ucoind.toml",
		PreRunE: loadConfig,
		RunE:    writeConfig,
	}
	AddRunFlags(cmd)
	cmd.Flags().BoolVar(&forceConfig, "force", false, "Overwrite an existing configuration file")
	return cmd
}

func writeConfig(cmd *cobra.Command, args []string) error {
	path := _config.Ucoind.ConfigFile()

	if _, err := os.Stat(path); err == nil && !forceConfig {
		return fmt.Errorf("A configuration file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	if err := writeConfigFile(path, _config); err != nil {
		return err
	}

	fmt.Printf("Configuration written to: %s\n", path)

	return nil
}

// configFile is the on-disk layout of ucoind.toml. Keys match the flags of
// the run command.
type configFile struct {
	DataDir       string `toml:"datadir"`
	LogLevel      string `toml:"log"`
	LogFile       string `toml:"log-file,omitempty"`
	Moniker       string `toml:"moniker"`
	BindAddr      string `toml:"listen"`
	AdvertiseAddr string `toml:"advertise,omitempty"`
	TCPTimeout    string `toml:"timeout"`
	MaxPool       int    `toml:"max-pool"`
	NoService     bool   `toml:"no-service"`
	ServiceAddr   string `toml:"service-listen"`
	Store         bool   `toml:"store"`
	DatabaseDir   string `toml:"db"`
	CacheSize     int    `toml:"cache-size"`
	Currency      string `toml:"currency"`
	WindowSize    int    `toml:"window"`
	BranchGrace   int    `toml:"branch-grace"`
	MinNewVoters  int    `toml:"min-new-voters"`
	SyncInterval  string `toml:"sync-interval"`
	SyncLimit     int    `toml:"sync-limit"`
}

func newConfigFile(c *CLIConfig) configFile {
	return configFile{
		DataDir:       c.Ucoind.DataDir,
		LogLevel:      c.Ucoind.LogLevel,
		LogFile:       c.LogFile,
		Moniker:       c.Ucoind.Moniker,
		BindAddr:      c.Ucoind.BindAddr,
		AdvertiseAddr: c.Ucoind.AdvertiseAddr,
		TCPTimeout:    c.Ucoind.TCPTimeout.String(),
		MaxPool:       c.Ucoind.MaxPool,
		NoService:     c.Ucoind.NoService,
		ServiceAddr:   c.Ucoind.ServiceAddr,
		Store:         c.Ucoind.Store,
		DatabaseDir:   c.Ucoind.DatabaseDir,
		CacheSize:     c.Ucoind.CacheSize,
		Currency:      c.Ucoind.Currency,
		WindowSize:    c.Ucoind.WindowSize,
		BranchGrace:   c.Ucoind.BranchGrace,
		MinNewVoters:  c.Ucoind.MinNewVoters,
		SyncInterval:  c.Ucoind.SyncInterval.String(),
		SyncLimit:     c.Ucoind.SyncLimit,
	}
}

func writeConfigFile(path string, c *CLIConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(newConfigFile(c))
}
