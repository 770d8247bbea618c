// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

// Package config implements the run-time configuration of the aspect library.
// Settings are read from environment variables prefixed by `SQREEN_ASPECT_`
// or from an optional configuration file, environment variables taking
// precedence.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/sqreen/go-aspect/internal/plog"
	"github.com/sqreen/go-aspect/internal/sqlib/sqerrors"
)

type Config struct {
	*viper.Viper
}

const (
	configEnvPrefix    = `sqreen_aspect`
	configFileBasename = `sqreen-aspect`
)

const (
	configEnvKeyConfigFile = `config_file`

	configKeyLogLevel      = `log_level`
	configKeyInsteadPolicy = `instead_policy`
	configKeyRules         = `rules`
	configKeyDisable       = `disable`
)

// Instead policy values. They tell what to do when several instead hooks are
// attached to the same method.
const (
	InsteadPolicyReject    = `reject`
	InsteadPolicyLastWins  = `last`
	InsteadPolicyFirstWins = `first`
)

// User configuration's default values.
const (
	configDefaultLogLevel      = plog.ErrorString
	configDefaultInsteadPolicy = InsteadPolicyReject
)

// New returns the configuration read from the environment and the optional
// configuration file. The configuration file is searched in the current
// working directory and then in the executable's directory, unless enforced
// by the `SQREEN_ASPECT_CONFIG_FILE` environment variable.
func New(logger *plog.Logger) (*Config, error) {
	manager := viper.New()
	manager.SetEnvPrefix(configEnvPrefix)
	manager.AutomaticEnv()
	manager.SetConfigName(configFileBasename)

	// Default values of configurable parameters
	parameters := []struct {
		key          string
		defaultValue interface{}
		hidden       bool
	}{
		{key: configKeyLogLevel, defaultValue: configDefaultLogLevel},
		{key: configKeyInsteadPolicy, defaultValue: configDefaultInsteadPolicy},
		{key: configKeyRules, defaultValue: ""},
		{key: configKeyDisable, defaultValue: "", hidden: true},
	}
	for _, p := range parameters {
		manager.SetDefault(p.key, p.defaultValue)
	}

	// Configuration file settings
	configFileEnvVar := strings.ToUpper(configEnvPrefix + "_" + configEnvKeyConfigFile)
	configFile := os.Getenv(configFileEnvVar)
	if configFile != "" {
		// File location enforced by the user
		manager.SetConfigFile(configFile)
		logger.Infof("config: configuration file enforced by the environment variable `%s` to `%s`", configFileEnvVar, configFile)
	} else {
		// Not enforced: add possible paths in precedence order
		// 1. Current working directory path:
		manager.AddConfigPath(`.`)
		// 2. Executable path
		exec, err := os.Executable()
		if err != nil {
			logger.Error(sqerrors.Wrap(err, "config: could not read the executable file path"))
		} else {
			manager.AddConfigPath(filepath.Dir(exec))
		}
	}
	// Try to read a configuration file according to the previous settings
	if readErr, fileUsed := manager.ReadInConfig(), manager.ConfigFileUsed(); readErr != nil && fileUsed != "" {
		// Could not read despite the fact of having found a file
		logger.Error(sqerrors.Wrap(readErr, fmt.Sprintf("config: could not read the configuration file `%s`: falling back to environment variables", fileUsed)))
	} else if fileUsed != "" {
		logger.Infof("config: reading configuration settings from file `%s`", fileUsed)
	} else {
		logger.Infof("config: reading configuration settings from environment variables")
	}

	cfg := &Config{Viper: manager}
	if cfg.LogLevel() == plog.Debug {
		logger.Infof("config: setting: %s = %q", configFileEnvVar, configFile)
		for _, p := range parameters {
			if !p.hidden {
				logger.Infof("config: settings: %s = %q", p.key, cfg.GetString(p.key))
			}
		}
	}

	if err := cfg.health(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewFromEnv returns the configuration read by New with a logger writing
// configuration errors only to `out`, the configured log level being unknown
// until read.
func NewFromEnv(out io.Writer) (*Config, error) {
	return New(plog.NewLogger(plog.Error, out, nil))
}

// LogLevel returns the log level.
func (c *Config) LogLevel() plog.LogLevel {
	return plog.ParseLogLevel(c.GetString(configKeyLogLevel))
}

// InsteadPolicy returns the policy applied when a method gets more than one
// instead hook. One of `InsteadPolicyReject`, `InsteadPolicyLastWins` or
// `InsteadPolicyFirstWins`.
func (c *Config) InsteadPolicy() string {
	return strings.ToLower(sanitizeString(c.GetString(configKeyInsteadPolicy)))
}

// RulesFile returns the path of a JSON file containing an array of aspect
// rules to load at start time. Empty when none.
func (c *Config) RulesFile() string {
	return sanitizeString(c.GetString(configKeyRules))
}

// Disabled returns true when interception should be globally disabled: calls
// are then dispatched directly to the original methods.
func (c *Config) Disabled() bool {
	disable := sanitizeString(c.GetString(configKeyDisable))
	return disable != ""
}

func sanitizeString(s string) string {
	return strings.TrimSpace(s)
}

func (c *Config) health() error {
	switch policy := c.InsteadPolicy(); policy {
	case InsteadPolicyReject, InsteadPolicyLastWins, InsteadPolicyFirstWins:
	default:
		return sqerrors.Errorf("config: unexpected %s value `%s`: expecting one of `%s`, `%s` or `%s`", configKeyInsteadPolicy, policy, InsteadPolicyReject, InsteadPolicyLastWins, InsteadPolicyFirstWins)
	}

	if level := sanitizeString(c.GetString(configKeyLogLevel)); level != "" && c.LogLevel() == plog.Disabled && strings.ToLower(level) != plog.DisabledString {
		return sqerrors.Errorf("config: unexpected %s value `%s`", configKeyLogLevel, level)
	}

	if file := c.RulesFile(); file != "" {
		if _, err := os.Stat(file); err != nil {
			return sqerrors.Wrapf(err, "config: rules file `%s`", file)
		}
	}

	return nil
}
