package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/likearthian/orderstore"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix         = "ORDERSTORE"
	configFileName    = "orderstore"
	configFileType    = "yaml"
	defaultConfigPath = "orderstore.yaml"
)

type appConfig struct {
	Store orderstore.Config `mapstructure:"store" yaml:"store"`
	Log   LogConfig         `mapstructure:"log" yaml:"log"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		Store: orderstore.Config{Driver: orderstore.DriverSQLite, DSN: "orderstore.db"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// loadConfig reads the config file at path, or orderstore.yaml in the working
// directory when path is empty. Every key may be overridden from the
// environment, e.g. ORDERSTORE_STORE_DSN. A missing default file is not an
// error.
func loadConfig(path string) (appConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetDefault("store.driver", def.Store.Driver)
	v.SetDefault("store.dsn", def.Store.DSN)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return appConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg appConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return appConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// writeDefaultConfig writes the default configuration to path unless a file
// is already there. It reports whether a file was written.
func writeDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	data, err := yaml.Marshal(defaultAppConfig())
	if err != nil {
		return false, fmt.Errorf("encode default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write default config: %w", err)
	}
	return true, nil
}
