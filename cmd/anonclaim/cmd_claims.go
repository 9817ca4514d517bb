package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/anon-ownership/store"
	"github.com/spf13/cobra"
)

func (a *app) claimsCmd() *cobra.Command {
	var object string
	cmd := &cobra.Command{
		Use:   "claims",
		Short: "List the claim and prove transactions in the local journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := store.Open(ctx, a.cfg.ClaimsDB)
			if err != nil {
				return err
			}
			defer s.Close()

			var entries []store.Entry
			if object != "" {
				if len(common.FromHex(object)) != common.HashLength {
					return fmt.Errorf("invalid object hash %q", object)
				}
				entries, err = s.ByObject(ctx, common.HexToHash(object))
			} else {
				entries, err = s.List(ctx)
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tOBJECT\tNULLIFIER\tDEPTH\tBLOCK\tTX\tTIME")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					e.Kind, e.ObjectHash.Hex(), e.Nullifier, e.Depth, e.BlockNumber, e.TxHash.Hex(),
					e.CreatedAt.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&object, "object", "", "only entries for this object hash")
	return cmd
}
