// Package app provides the shared command-line scaffolding: cobra command
// construction, viper-backed configuration (flags, file, environment) and
// live log-level reload on config file changes.
package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/aquahub-io/aquahub/pkg/log"
)

// CliOptions is the aggregate options object of a command.
type CliOptions interface {
	AddFlags(fs *pflag.FlagSet)
	Complete() error
	Validate() error
}

// LogOptionsProvider is implemented by options that carry logging settings;
// the app then initializes the global logger and reloads the level on config
// file changes.
type LogOptionsProvider interface {
	LogOptions() *log.Options
}

// RunFunc is the command's main entry.
type RunFunc func() error

// App wraps a cobra command with uniform config handling.
type App struct {
	name        string
	short       string
	description string
	options     CliOptions
	runFunc     RunFunc
	subcommands []*cobra.Command

	cmd        *cobra.Command
	configFile string
}

// Option configures an App.
type Option func(*App)

func WithOptions(opts CliOptions) Option {
	return func(a *App) { a.options = opts }
}

func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

func WithSubcommands(cmds ...*cobra.Command) Option {
	return func(a *App) { a.subcommands = append(a.subcommands, cmds...) }
}

// NewApp builds the root command.
func NewApp(name, short string, opts ...Option) *App {
	a := &App{
		name:  name,
		short: short,
	}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.short,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd)
		},
	}

	fs := cmd.PersistentFlags()
	if a.options != nil {
		a.options.AddFlags(fs)
	}
	fs.StringVarP(&a.configFile, "config", "c", "", "Path to the configuration file.")

	cmd.AddCommand(a.subcommands...)
	a.cmd = cmd
}

// Command exposes the underlying cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the command and exits non-zero on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *App) run(cmd *cobra.Command) error {
	if err := a.loadConfig(cmd.PersistentFlags()); err != nil {
		return err
	}

	if lp, ok := a.options.(LogOptionsProvider); ok {
		log.Init(lp.LogOptions())
		defer log.Sync()
		a.watchConfig()
	}

	// container-aware GOMAXPROCS
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		log.Warn("set GOMAXPROCS failed", "err", err)
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	log.Info("starting application", "name", a.name)
	return a.runFunc()
}

// loadConfig merges, in ascending precedence: config file, environment
// variables ({NAME}_ prefix, dots and dashes as underscores), command-line
// flags.
func (a *App) loadConfig(fs *pflag.FlagSet) error {
	if a.configFile != "" {
		viper.SetConfigFile(a.configFile)
	} else {
		viper.SetConfigName(a.name)
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/." + a.name)
		}
		viper.AddConfigPath("/etc/" + a.name)
	}

	viper.SetEnvPrefix(strings.ReplaceAll(strings.ToUpper(a.name), "-", "_"))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(fs); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// a config file is optional unless one was named explicitly
		if a.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if a.options != nil {
		if err := viper.Unmarshal(a.options); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
	}
	return nil
}

// watchConfig reloads the log level when the config file changes. Other
// settings keep their startup values.
func (a *App) watchConfig() {
	if viper.ConfigFileUsed() == "" {
		return
	}

	viper.OnConfigChange(func(in fsnotify.Event) {
		if level := viper.GetString("log.level"); level != "" {
			log.SetLevel(level)
		}
		log.Info("configuration reloaded", "file", in.Name)
	})
	viper.WatchConfig()
}
