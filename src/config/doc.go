// Package config defines the configuration of a ucoind node.
//
// Values are read by the cobra commands, through viper, from command line
// flags and from the ucoind.toml file in the data directory. Tags use the
// mapstructure format so that viper can unmarshal directly into a Config.
package config
