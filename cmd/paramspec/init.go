package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360studio/paramspec/config"
)

// starterSpec seeds a new project with a minimal working parameter spec.
const starterSpec = `parameters:
  - id: example_input
    status: experimental_input
    value: 1.0
    uncertainty:
      sigma: 0.1
    unit: dimensionless
    category: examples
    labels: ["example input"]

  - id: example_derived
    status: derived
    formula: example_derived_f
    inputs: [example_input]
    unit: dimensionless
    category: examples

formulas:
  - id: example_derived_f
    output: example_derived
    inputs: [example_input]
    op: product
    coefficient: 2.0
`

func initCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold a project config and starter parameter spec",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *logLevel)
			if err != nil {
				return &exitError{code: exitStructural, err: err}
			}

			if err := config.NewLoader(a.logger).EnsureUserConfig(); err != nil {
				return &exitError{code: exitStructural, err: err}
			}

			if _, err := os.Stat(config.ProjectConfigFile); err == nil {
				a.logger.Info("Project config already exists", "path", config.ProjectConfigFile)
			} else {
				if err := a.cfg.SaveToFile(config.ProjectConfigFile); err != nil {
					return &exitError{code: exitStructural, err: err}
				}
				fmt.Printf("Created %s\n", config.ProjectConfigFile)
			}

			if _, err := os.Stat(a.cfg.Spec.Path); err == nil {
				a.logger.Info("Parameter spec already exists", "path", a.cfg.Spec.Path)
				return nil
			}
			if err := os.WriteFile(a.cfg.Spec.Path, []byte(starterSpec), 0644); err != nil {
				return &exitError{code: exitStructural, err: fmt.Errorf("write starter spec: %w", err)}
			}
			fmt.Printf("Created %s\n", a.cfg.Spec.Path)
			return nil
		},
	}
}
