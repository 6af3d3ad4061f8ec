package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func removeModelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-model NAME",
		Short: "Remove a model from the statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			result := store.RemoveModel(args[0])
			if !result.Removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Model %q not found\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed model %q (%d images)\n", args[0], result.Count)
			return persist(store)
		},
	}
}

func modelsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage model display names",
		Long: `Model names found in images are normalized into display names. Mappings
override the display name of a specific original name.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List model name mappings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				mappings := store.ModelMappings()
				out := cmd.OutOrStdout()
				if len(mappings) == 0 {
					fmt.Fprintln(out, "No model mappings")
					return nil
				}

				originals := make([]string, 0, len(mappings))
				for k := range mappings {
					originals = append(originals, k)
				}
				sort.Strings(originals)

				tw := newTable(out)
				fmt.Fprintln(tw, "ORIGINAL\tDISPLAY")
				for _, o := range originals {
					fmt.Fprintf(tw, "%s\t%s\n", o, mappings[o])
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "set ORIGINAL DISPLAY",
			Short: "Map an original model name to a display name",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				if err := store.SetModelMapping(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "unset ORIGINAL",
			Short: "Remove a model name mapping",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				removed, err := store.RemoveModelMapping(args[0])
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(cmd.OutOrStdout(), "No mapping for %q\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed mapping for %q\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "consolidate",
			Short: "Renormalize model names and merge duplicates",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				result := store.ConsolidateModelNames()
				out := cmd.OutOrStdout()
				for _, c := range result.Changes {
					fmt.Fprintln(out, c)
				}
				fmt.Fprintf(out, "Models: %d -> %d\n", result.Before, result.After)
				return persist(store)
			},
		},
	)

	return cmd
}
