package main

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/anon-ownership/chain"
	"github.com/kysee/anon-ownership/tasks"
	"github.com/spf13/cobra"
)

func (a *app) deploySemaphoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy-semaphore",
		Short: "Deploy PoseidonT3, SemaphoreVerifier and Semaphore, then create a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			d := &chain.Deployer{Client: c, ArtifactsDir: a.cfg.ArtifactsDir, Logger: a.logger}
			open := func(addr common.Address) tasks.GroupManager {
				return chain.NewSemaphore(addr, c, a.logger)
			}
			_, _, err = tasks.DeploySemaphore(ctx, d, open, c.From, a.cfg.GroupDuration, cmd.OutOrStdout(), a.logger)
			return err
		},
	}
}

func (a *app) deployRegistryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy-registry",
		Short: "Deploy AnonOwnershipRegistry bound to SEMAPHORE_ADDRESS and GROUP_ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			semaphore, err := a.cfg.SemaphoreAddr()
			if err != nil {
				return err
			}
			groupID, err := a.cfg.GroupIDInt()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			d := &chain.Deployer{Client: c, ArtifactsDir: a.cfg.ArtifactsDir, Logger: a.logger}
			_, err = tasks.DeployRegistry(ctx, d, semaphore, groupID, cmd.OutOrStdout(), a.logger)
			return err
		},
	}
}

func (a *app) addMemberCmd() *cobra.Command {
	var keyfiles, seeds []string
	cmd := &cobra.Command{
		Use:   "add-member",
		Short: "Add identities to the group (USER_ID_SEED when none are given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			semaphore, err := a.cfg.SemaphoreAddr()
			if err != nil {
				return err
			}
			groupID, err := a.cfg.GroupIDInt()
			if err != nil {
				return err
			}
			ids, err := a.loadIdentities(keyfiles, seeds)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			return tasks.AddMembers(ctx, chain.NewSemaphore(semaphore, c, a.logger), groupID, ids, cmd.OutOrStdout(), a.logger)
		},
	}
	cmd.Flags().StringArrayVar(&keyfiles, "keyfile", nil, "identity keyfile to add (password from "+keyfilePasswordEnv+"); repeatable")
	cmd.Flags().StringArrayVar(&seeds, "seed", nil, "identity seed to add; repeatable")
	return cmd
}
