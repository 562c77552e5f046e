package cli

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-painpoint/painpoint"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the pain point table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := rootOpts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.EnsureSchema(cmd.Context()); err != nil {
				return fmt.Errorf("ensure table: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Table %s ready.\n", painpoint.TableName)
			return nil
		},
	}
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate the pain point table",
		Long: `Drops the pain point table and recreates it empty. Every flag recorded
by every user is lost. Meant for bootstrapping and test stores.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes every pain point; pass --yes to confirm")
			}

			c, _, err := rootOpts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Schema().ResetTable(cmd.Context()); err != nil {
				return fmt.Errorf("reset table: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Table %s reset.\n", painpoint.TableName)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm dropping the table")
	return cmd
}
