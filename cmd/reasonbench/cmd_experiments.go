package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zetareason/reasonbench/internal/config"
	"github.com/zetareason/reasonbench/internal/reporting"
	"github.com/zetareason/reasonbench/internal/storage"
)

func newExperimentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiments",
		Short: "Manage stored experiments",
	}

	cmd.AddCommand(newExperimentsListCommand())
	cmd.AddCommand(newExperimentsShowCommand())
	cmd.AddCommand(newExperimentsDeleteCommand())
	cmd.AddCommand(newExperimentsStatsCommand())

	return cmd
}

func openStore() (*storage.Store, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	return storage.NewStore(cfg.Paths.Experiments)
}

func newExperimentsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored experiments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			list, err := store.List()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No experiments stored.")
				return nil
			}

			for _, meta := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-24s %-20s %d model(s), %d task(s)\n",
					meta.CreatedAt.Local().Format("2006-01-02 15:04"),
					meta.Name,
					meta.Dataset,
					meta.ModelCount,
					meta.TaskCount)
				fmt.Fprintf(cmd.OutOrStdout(), "  id: %s\n", meta.ID)
			}
			return nil
		},
	}
}

func newExperimentsShowCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one experiment's results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			exp, err := store.Load(args[0])
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(exp, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\nDataset: %s\nCreated: %s\n\n",
				exp.Name, exp.ID, exp.Dataset, exp.CreatedAt.Local().Format(time.RFC1123))
			reporting.WriteComparisonTable(cmd.OutOrStdout(), exp.Results)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw experiment JSON")
	return cmd
}

func newExperimentsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted experiment %s\n", args[0])
			return nil
		},
	}
}

func newExperimentsStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show experiment storage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			stats, err := store.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Experiments: %d\nDisk usage:  %.1f KiB\nDirectory:   %s\n",
				stats.ExperimentCount, float64(stats.TotalSizeBytes)/1024, store.Dir())
			return nil
		},
	}
}
