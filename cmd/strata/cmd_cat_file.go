package main

import (
	"fmt"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/repo"
	"github.com/spf13/cobra"
)

func newCatFileCmd() *cobra.Command {
	var showType bool

	cmd := &cobra.Command{
		Use:   "cat-file <hash>",
		Short: "Print the type or content of a stored object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			h := object.Hash(strings.TrimSpace(args[0]))
			objType, content, err := r.Store.Read(h)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showType {
				fmt.Fprintln(out, objType)
				return nil
			}

			switch objType {
			case object.TypeBlob:
				_, err = out.Write(content)
				return err
			case object.TypeTree:
				tree, err := object.UnmarshalTree(content)
				if err != nil {
					return err
				}
				for _, e := range tree.Entries {
					h := e.BlobHash
					if e.IsDir {
						h = e.SubtreeHash
					}
					fmt.Fprintf(out, "%s %s %s\n", e.Mode, h, e.Name)
				}
				return nil
			default:
				// Commits and tags are stored as readable text already.
				_, err = out.Write(content)
				return err
			}
		},
	}

	cmd.Flags().BoolVarP(&showType, "type", "t", false, "print the object type instead of its content")

	return cmd
}
