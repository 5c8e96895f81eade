package cmd

import (
	"fmt"
	"os"

	"cosmossdk.io/log"
	"github.com/rs/zerolog"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// AppState is the state shared by every command.
type AppState struct {
	Config     *types.Config
	ConfigPath string
	LogLevel   string
	Logger     log.Logger
}

func NewAppState() *AppState {
	return &AppState{}
}

// InitAppState sets up the logger and loads the config. It exits on failure.
func (a *AppState) InitAppState() {
	a.InitLogger()
	if err := a.loadConfigFile(); err != nil {
		a.Logger.Error("Unable to load config", "error", err)
		os.Exit(1)
	}
}

// InitLogger builds the logger from LogLevel, defaulting to info.
func (a *AppState) InitLogger() {
	level := zerolog.InfoLevel
	if a.LogLevel != "" {
		parsed, err := zerolog.ParseLevel(a.LogLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid log level %q, using info\n", a.LogLevel)
		} else {
			level = parsed
		}
	}
	a.Logger = log.NewLogger(os.Stderr, log.LevelOption(level))
}

func (a *AppState) loadConfigFile() error {
	if a.Config != nil {
		return nil
	}
	cfg, err := types.LoadConfig(a.ConfigPath)
	if err != nil {
		return err
	}
	a.Config = cfg
	if a.ConfigPath == "" {
		a.Logger.Debug("No config file given, using the built-in mainnet chains")
	} else {
		a.Logger.Debug(fmt.Sprintf("Loaded config from %s", a.ConfigPath))
	}
	return nil
}
