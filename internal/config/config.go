// Package config loads rubyscope settings from a config file, the
// environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyStrict       = "strict"
	KeyJobs         = "jobs"
	KeyMinimalEdits = "minimal_edits"
	KeyVerbosity    = "log.verbosity"
	KeyLogFile      = "log.file"
	KeyDebounce     = "lsp.debounce"

	EnvPrefix = "RUBYSCOPE"
	FileName  = ".rubyscope"
)

type Config struct {
	Strict       bool
	Jobs         int
	MinimalEdits bool
	Verbosity    int
	LogFile      string
	Debounce     time.Duration
	// Source is the config file that was read, or "" when none was found.
	Source       string
}

// New returns a viper instance with defaults and environment binding set
// up. Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyStrict, false)
	v.SetDefault(KeyJobs, runtime.NumCPU())
	v.SetDefault(KeyMinimalEdits, false)
	v.SetDefault(KeyVerbosity, 0)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyDebounce, time.Duration(0))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads cfgFile, or searches the working directory and $HOME for
// .rubyscope.{yaml,toml,json} when cfgFile is empty. A missing search
// result is not an error; a missing explicit file is.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	c := &Config{
		Strict:       v.GetBool(KeyStrict),
		Jobs:         v.GetInt(KeyJobs),
		MinimalEdits: v.GetBool(KeyMinimalEdits),
		Verbosity:    v.GetInt(KeyVerbosity),
		LogFile:      v.GetString(KeyLogFile),
		Debounce:     v.GetDuration(KeyDebounce),
		Source:       v.ConfigFileUsed(),
	}
	if c.Jobs < 1 {
		c.Jobs = 1
	}
	if c.Debounce < 0 {
		return nil, fmt.Errorf("config: %s must not be negative, got %s", KeyDebounce, c.Debounce)
	}
	return c, nil
}
