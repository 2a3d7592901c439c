// Package main provides the paramspec binary entry point.
// Paramspec maintains a canonical registry of numeric parameters, derives
// dependent values over a dependency DAG, propagates uncertainties, exports
// content-hashed artifacts, and validates that every number rendered in the
// document corpus traces back to the registry.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "paramspec"
)

// Exit codes: 0 success, 1 completed with validation findings, 2 fatal
// structural error (duplicate id, cycle, formula failure, export integrity).
const (
	exitOK         = 0
	exitIssues     = 1
	exitStructural = 2
)

// exitError carries a process exit code through cobra's RunE chain.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := rootCmd().Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", ee.err)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitStructural)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Parameter derivation and consistency engine",
		Long: `Paramspec keeps a document corpus numerically honest.

It loads a declarative parameter spec, derives dependent parameters over a
dependency DAG, propagates uncertainties (analytic and Monte Carlo), exports
content-hashed dataset artifacts, and scans the rendered documents for
numbers that drifted from the canonical values.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(initCmd(&configPath, &logLevel))
	cmd.AddCommand(buildCmd(&configPath, &logLevel))
	cmd.AddCommand(validateCmd(&configPath, &logLevel))
	cmd.AddCommand(propagateCmd(&configPath, &logLevel))
	cmd.AddCommand(diffCmd(&logLevel))
	cmd.AddCommand(watchCmd(&configPath, &logLevel))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}
