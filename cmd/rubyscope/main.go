package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/jward/rubyscope"
	"github.com/jward/rubyscope/internal/config"
)

var (
	flagConfig  string
	flagFormat  string
	flagVerbose int
)

var log = commonlog.GetLogger("rubyscope.cli")

// cfg is loaded once per invocation in PersistentPreRunE.
var cfg *config.Config

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "rubyscope",
	Short:         "Scope-aware analysis of Ruby source",
	Long:          "Rubyscope parses Ruby with tree-sitter, indexes every node by its lexical scope, and answers scope queries from the command line or over LSP.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(cmd, flagFormat); err != nil {
			return err
		}
		return loadConfig(cmd)
	},
	// No Run; prints help by default.
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default: .rubyscope.{yaml,toml,json} in . or $HOME)")
	pf.StringVar(&flagFormat, "format", "json", "output format: json|text")
	pf.CountVarP(&flagVerbose, "verbose", "v", "increase log verbosity (repeatable)")
	pf.Bool("strict", false, "treat trees with syntax errors as failed parses")
	pf.Int("jobs", 0, "parallel analysis jobs (default: number of CPUs)")
	pf.Bool("minimal-edits", false, "describe incremental edits by their changed region only")
	pf.String("log-file", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(scopeCmd)
	rootCmd.AddCommand(diagnosticsCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(lspCmd)
}

// loadConfig layers flags over the environment and config file, then
// configures logging.
func loadConfig(cmd *cobra.Command) error {
	v := config.New()
	flags := cmd.Flags()
	binds := map[string]string{
		config.KeyStrict:       "strict",
		config.KeyMinimalEdits: "minimal-edits",
		config.KeyLogFile:      "log-file",
	}
	for key, name := range binds {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	// Zero means "unset" for these two, so only explicit values override.
	if flags.Changed("jobs") {
		jobs, _ := flags.GetInt("jobs")
		v.Set(config.KeyJobs, jobs)
	}
	if flagVerbose > 0 {
		v.Set(config.KeyVerbosity, flagVerbose)
	}
	if f := flags.Lookup("debounce"); f != nil {
		if err := v.BindPFlag(config.KeyDebounce, f); err != nil {
			return fmt.Errorf("binding --debounce: %w", err)
		}
	}

	loaded, err := config.Load(v, flagConfig)
	if err != nil {
		return err
	}
	cfg = loaded

	var logPath *string
	if cfg.LogFile != "" {
		logPath = &cfg.LogFile
	}
	commonlog.Configure(cfg.Verbosity, logPath)
	if cfg.Source != "" {
		log.Debugf("using config %s", cfg.Source)
	}
	return nil
}

// newEngine builds an Engine from the loaded configuration.
func newEngine(extra ...rubyscope.Option) (*rubyscope.Engine, error) {
	opts := []rubyscope.Option{
		rubyscope.WithStrict(cfg.Strict),
		rubyscope.WithJobs(cfg.Jobs),
		rubyscope.WithMinimalEdits(cfg.MinimalEdits),
	}
	engine, err := rubyscope.New(append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, nil
}

// formatsFor lists the --format values a command accepts. Only dump can
// write msgpack.
func formatsFor(cmd *cobra.Command) []string {
	if cmd.Name() == "dump" {
		return []string{"json", "text", "msgpack"}
	}
	return []string{"json", "text"}
}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(cmd *cobra.Command, format string) error {
	valid := formatsFor(cmd)
	for _, f := range valid {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(valid, ", "))
}
