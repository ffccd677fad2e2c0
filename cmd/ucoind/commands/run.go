package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ucoin-io/ucoind/src/config"
	"github.com/ucoin-io/ucoind/src/ucoin"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

//NewRunCmd returns the command that starts a ucoind node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runUcoind,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runUcoind(cmd *cobra.Command, args []string) error {
	engine := ucoin.NewUcoin(&_config.Ucoind)

	if err := engine.Init(); err != nil {
		_config.Ucoind.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalCh
		_config.Ucoind.Logger().WithField("signal", sig).Info("Shutting down")
		engine.Shutdown()
	}()

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.Ucoind.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Ucoind.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write logs to this file")
	cmd.Flags().String("moniker", _config.Ucoind.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.Ucoind.BindAddr, "Listen IP:Port for pull requests")
	cmd.Flags().StringP("advertise", "a", _config.Ucoind.AdvertiseAddr, "Advertise IP:Port")
	cmd.Flags().DurationP("timeout", "t", _config.Ucoind.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", _config.Ucoind.MaxPool, "Connection pool size max")

	// Service
	cmd.Flags().Bool("no-service", _config.Ucoind.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.Ucoind.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Ucoind.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.Ucoind.DatabaseDir, "Dabatabase directory")
	cmd.Flags().Int("cache-size", _config.Ucoind.CacheSize, "Number of items in LRU caches")

	// Amendment chain
	cmd.Flags().String("currency", _config.Ucoind.Currency, "Name of the currency")
	cmd.Flags().Int("window", _config.Ucoind.WindowSize, "Number of amendments a fork may lag the best head")
	cmd.Flags().Int("branch-grace", _config.Ucoind.BranchGrace, "Extra lag before a stale branch is discarded")
	cmd.Flags().Int("min-new-voters", _config.Ucoind.MinNewVoters, "Minimum number of new voters per amendment")

	// Sync
	cmd.Flags().Duration("sync-interval", _config.Ucoind.SyncInterval, "Time between pulls, 0 to disable")
	cmd.Flags().Int("sync-limit", _config.Ucoind.SyncLimit, "Max number of amendments per pull")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Ucoind.SetDataDir(_config.Ucoind.DataDir)

	_config.Ucoind.SetLogger(newLogger(_config.Ucoind.LogLevel, _config.LogFile))

	logFields := logrus.Fields{
		"ucoind.DataDir":       _config.Ucoind.DataDir,
		"ucoind.BindAddr":      _config.Ucoind.BindAddr,
		"ucoind.AdvertiseAddr": _config.Ucoind.AdvertiseAddr,
		"ucoind.NoService":     _config.Ucoind.NoService,
		"ucoind.ServiceAddr":   _config.Ucoind.ServiceAddr,
		"ucoind.MaxPool":       _config.Ucoind.MaxPool,
		"ucoind.Store":         _config.Ucoind.Store,
		"ucoind.LogLevel":      _config.Ucoind.LogLevel,
		"ucoind.Moniker":       _config.Ucoind.Moniker,
		"ucoind.TCPTimeout":    _config.Ucoind.TCPTimeout,
		"ucoind.CacheSize":     _config.Ucoind.CacheSize,
		"ucoind.SyncInterval":  _config.Ucoind.SyncInterval,
		"ucoind.SyncLimit":     _config.Ucoind.SyncLimit,
		"ucoind.Currency":      _config.Ucoind.Currency,
		"ucoind.WindowSize":    _config.Ucoind.WindowSize,
		"ucoind.BranchGrace":   _config.Ucoind.BranchGrace,
		"ucoind.MinNewVoters":  _config.Ucoind.MinNewVoters,
	}

	if _config.Ucoind.Store {
		logFields["ucoind.DatabaseDir"] = _config.Ucoind.DatabaseDir
	}

	_config.Ucoind.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/ucoind.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigFile)
	viper.AddConfigPath(_config.Ucoind.DataDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Ucoind.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Ucoind.Logger().Debugf("No config file found in: %s", _config.Ucoind.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

// newLogger writes prefixed text to stderr and, when logFile is set, plain
// text to logFile.
func newLogger(level, logFile string) *logrus.Logger {
	logger := logrus.New()
	logger.Level = config.LogLevel(level)
	logger.Formatter = new(prefixed.TextFormatter)

	if logFile == "" {
		return logger
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logger.Infof("Failed to open %s, using default stderr", logFile)
		return logger
	}
	f.Close()

	pathMap := lfshook.PathMap{}
	for _, l := range logrus.AllLevels {
		pathMap[l] = logFile
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))

	return logger
}
