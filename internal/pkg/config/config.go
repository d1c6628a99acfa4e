// Package config handles the configuration of the harvester. It reads
// from a config file, environment variables and command-line flags,
// in ascending order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the harvester and scheduler.
type Config struct {
	DataDir        string `mapstructure:"data-dir"`
	HarvestDir     string `mapstructure:"harvest-dir"`
	ZipDir         string `mapstructure:"zip-dir"`
	MetricsAddress string `mapstructure:"metrics-address"`

	HTTPTimeout time.Duration `mapstructure:"http-timeout"`
	NotifyEvery int           `mapstructure:"notify-every"`

	LogLevel       string `mapstructure:"log-level"`
	LogFileDir     string `mapstructure:"log-file-dir"`
	LogFileLevel   string `mapstructure:"log-file-level"`
	NoStdoutLog    bool   `mapstructure:"no-stdout-log"`
	NoFileLogging  bool   `mapstructure:"no-file-logging"`
	WriteHeaders   bool   `mapstructure:"write-headers"`
	SplitBySet     bool   `mapstructure:"split-by-set"`
	ZipOnCompleted bool   `mapstructure:"zip-on-completed"`
}

var (
	config *Config
	once   sync.Once
)

// InitConfig initializes the configuration.
// Flags -> Environment variables -> Config file
func InitConfig() error {
	var err error
	once.Do(func() {
		config = &Config{}

		// Check if a config file is provided via flag
		if configFile := viper.GetString("config-file"); configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				home = os.TempDir()
			}

			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName("oaih-config")
		}

		viper.SetEnvPrefix("OAIH")
		replacer := strings.NewReplacer("-", "_", ".", "_")
		viper.SetEnvKeyReplacer(replacer)
		viper.AutomaticEnv()

		if err = viper.ReadInConfig(); err == nil {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file is fine, flags and env cover everything.
			err = nil
		} else {
			return
		}

		if err = viper.Unmarshal(config); err != nil {
			return
		}

		if config.DataDir == "" {
			config.DataDir = "data"
		}
		if config.HarvestDir == "" {
			config.HarvestDir = filepath.Join(config.DataDir, "harvests")
		}
		if config.ZipDir == "" {
			config.ZipDir = filepath.Join(config.DataDir, "zips")
		}
	})
	return err
}

// BindFlags binds the flags to the viper configuration. This is needed
// because viper doesn't support same flag name accross multiple commands.
// Details here: https://github.com/spf13/viper/issues/375#issuecomment-794668149
func BindFlags(flagSet *pflag.FlagSet) {
	flagSet.VisitAll(func(flag *pflag.Flag) {
		viper.BindPFlag(flag.Name, flag)
	})
}

// Get returns the configuration, initializing it with defaults if
// InitConfig was never called (tests mostly).
func Get() *Config {
	if config == nil {
		InitConfig()
	}
	return config
}
