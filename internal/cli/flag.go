package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

const (
	msgSaved  = "Pain point saved."
	msgFailed = "Failed to add or update pain point. Check whether the database is running."
)

// NewIDCommand creates the id command.
func NewIDCommand(rootOpts *RootOptions) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "id <file> <path> <project>",
		Short: "Print the class id (and record id) derived for a file",
		Long: `Prints the class id derived from the file's path inside the project and,
with --user, the record id that user's pain point is stored under.
Does not touch the store.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}

			d := cfg.Deriver()
			classID := d.ClassID(args[0], args[1], args[2])
			fmt.Fprintf(cmd.OutOrStdout(), "class_id: %d\n", classID)
			if user != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "record_id: %d\n", d.RecordID(classID, user))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "user name")
	return cmd
}

// NewFlagCommand creates the flag command.
func NewFlagCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		user string
		down bool
	)

	cmd := &cobra.Command{
		Use:   "flag <file> <path> <project>",
		Short: "Add or update a user's pain point on a file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return errors.New("--user is required")
			}

			c, cfg, err := rootOpts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			classID := cfg.Deriver().ClassID(args[0], args[1], args[2])
			if !c.Service().AddOrUpdate(cmd.Context(), classID, user, down) {
				fmt.Fprintln(cmd.ErrOrStderr(), msgFailed)
				return ErrReported
			}

			fmt.Fprintln(cmd.OutOrStdout(), msgSaved)
			return nil
		},
		SilenceErrors: true,
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "user name (required)")
	cmd.Flags().BoolVar(&down, "down", true, "thumbs down: true flags the file, false clears the flag")
	return cmd
}
