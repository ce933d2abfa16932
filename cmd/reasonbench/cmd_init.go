package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zetareason/reasonbench/internal/config"
	"github.com/zetareason/reasonbench/internal/wizard"
)

const sampleDataset = `id,input,target
q1,What is 12 + 30?,42
q2,What is 9 * 7?,63
q3,What is 100 - 58?,42
`

func newInitCommand() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new benchmark project",
		Long: `Initialize a benchmark project directory.

Creates a .reasonbench.yaml config file and a datasets/ directory with a
sample dataset. Use --interactive to run a guided wizard that collects the
project settings.

If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommandE(cmd, args, interactive)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run the guided setup wizard")

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string, interactive bool) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	var configYAML string
	var datasetsDir string
	if interactive {
		spec, err := wizard.RunProjectWizard(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		configYAML = wizard.GenerateConfigYAML(spec)
		datasetsDir = spec.DatasetsDir
	} else {
		defaults := config.New()
		configYAML = wizard.GenerateConfigYAML(&wizard.ProjectSpec{
			Provider:    defaults.Defaults.Provider,
			Model:       defaults.Defaults.Model,
			UseCoT:      true,
			Workers:     defaults.Defaults.Workers,
			DatasetsDir: defaults.Paths.Datasets,
			ServerPort:  defaults.Server.Port,
		})
		datasetsDir = defaults.Paths.Datasets
	}

	if err := os.WriteFile(configPath, []byte(configYAML), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", configPath)

	datasetsPath := filepath.Join(dir, datasetsDir)
	if err := os.MkdirAll(datasetsPath, 0o755); err != nil {
		return fmt.Errorf("failed to create datasets directory: %w", err)
	}

	samplePath := filepath.Join(datasetsPath, "sample.csv")
	if _, err := os.Stat(samplePath); os.IsNotExist(err) {
		if err := os.WriteFile(samplePath, []byte(sampleDataset), 0o644); err != nil {
			return fmt.Errorf("failed to write sample dataset: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", samplePath)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nProject initialized. Try:\n\n  reasonbench run %s --model scripted/demo\n\n", samplePath)
	return nil
}
