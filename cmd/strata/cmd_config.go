package main

import (
	"fmt"
	"sort"

	"github.com/odvcencio/strata/pkg/repo"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	var unset bool
	var list bool

	cmd := &cobra.Command{
		Use:   "config [key] [value]",
		Short: "Get and set repository configuration",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if list {
				if len(args) > 0 {
					return fmt.Errorf("config --list does not accept positional args")
				}
				all, err := r.ConfigList()
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(all))
				for k := range all {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "%s=%s\n", k, all[k])
				}
				return nil
			}

			if unset {
				if len(args) != 1 {
					return fmt.Errorf("config --unset requires exactly one key")
				}
				return r.ConfigUnset(args[0])
			}

			switch len(args) {
			case 1:
				v, err := r.ConfigGet(args[0])
				if err != nil {
					return err
				}
				if v != "" {
					fmt.Fprintln(out, v)
				}
				return nil
			case 2:
				return r.ConfigSet(args[0], args[1])
			default:
				return fmt.Errorf("config requires a key (and optionally a value)")
			}
		},
	}

	cmd.Flags().BoolVar(&unset, "unset", false, "remove the named key")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list all configuration keys")

	return cmd
}
