package commands

import (
	"github.com/ucoin-io/ucoind/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Ucoind  config.Config `mapstructure:",squash"`
	LogFile string        `mapstructure:"log-file"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Ucoind: *config.NewDefaultConfig(),
	}
}
