// Package cli holds the config and logging setup shared by the binaries.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config binds a command's flags to environment variables and an optional
// config file. Flags win over the environment, which wins over the file.
type Config struct {
	*viper.Viper
}

// NewConfig reads <PREFIX>_<FLAG> for every flag, with dashes turned into
// underscores. Extra names can be added per key with BindEnv. A variable
// that is present but empty counts as set.
func NewConfig(envPrefix string) *Config {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	return &Config{Viper: v}
}

// Load binds the command's flags and reads the config file when one is set.
func (c *Config) Load(cmd *cobra.Command, configFile string) error {
	if err := c.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	if configFile == "" {
		return nil
	}
	c.SetConfigFile(configFile)
	if err := c.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", configFile, err)
	}
	return nil
}

// MustBindEnv adds explicit environment names for a key.
func (c *Config) MustBindEnv(key string, names ...string) {
	if err := c.BindEnv(append([]string{key}, names...)...); err != nil {
		panic(err)
	}
}

// SetupLogging installs a text handler on stderr as the default logger.
func SetupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

// Main runs the root command and exits non-zero on failure. The command
// context is cancelled on SIGINT or SIGTERM.
func Main(root *cobra.Command) {
	root.SilenceUsage = true
	root.SilenceErrors = true
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
