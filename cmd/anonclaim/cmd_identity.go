package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kysee/anon-ownership/identity"
	"github.com/spf13/cobra"
)

func (a *app) identityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Print the commitment of the USER_ID_SEED identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := a.cfg.Seed()
			if err != nil {
				return err
			}
			id, err := identity.New(seed)
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), id)
			return nil
		},
	}

	var out string
	save := &cobra.Command{
		Use:   "save",
		Short: "Encrypt the USER_ID_SEED identity into a keyfile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := a.cfg.Seed()
			if err != nil {
				return err
			}
			password := os.Getenv(keyfilePasswordEnv)
			if password == "" {
				return fmt.Errorf("%s is required", keyfilePasswordEnv)
			}
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists", out)
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			id, err := identity.New(seed)
			if err != nil {
				return err
			}
			if err := identity.SaveKeyfile(out, id, password); err != nil {
				return err
			}
			a.logger.Info().Str("path", out).Msg("keyfile written")
			printIdentity(cmd.OutOrStdout(), id)
			return nil
		},
	}
	save.Flags().StringVar(&out, "out", "identity.json", "keyfile path")

	show := &cobra.Command{
		Use:   "show <keyfile>",
		Short: "Decrypt a keyfile and print its commitment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.LoadKeyfile(args[0], os.Getenv(keyfilePasswordEnv))
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.AddCommand(save, show)
	return cmd
}

func printIdentity(w io.Writer, id *identity.Identity) {
	fmt.Fprintf(w, "commitment: %s\n", id.Commitment)
	fmt.Fprintf(w, "public key: %s %s\n", id.PublicKey.X, id.PublicKey.Y)
}
