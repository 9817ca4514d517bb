package main

import (
	"fmt"

	"github.com/kysee/anon-ownership/objecthash"
	"github.com/kysee/anon-ownership/proof"
	"github.com/spf13/cobra"
)

func (a *app) hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <json | file | ->",
		Short: "Print the canonical form of a JSON object and its claim hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readObject(args[0], "", cmd.InOrStdin())
			if err != nil {
				return err
			}
			canonical, err := objecthash.CanonicalizeJSON(data)
			if err != nil {
				return err
			}
			h := objecthash.Sum(canonical)
			field := objecthash.ToField(h)
			scope, err := proof.HashField(field)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "canonical: %s\n", canonical)
			fmt.Fprintf(out, "hash:      %s\n", h.Hex())
			fmt.Fprintf(out, "field:     %s\n", field)
			fmt.Fprintf(out, "scope:     %s\n", scope)
			return nil
		},
	}
}
