package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/goliatone/go-painpoint/painpoint"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ValidOutputs lists the formats accepted by -o.
var ValidOutputs = []string{"table", "yaml"}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		refresh bool
		classID int32
		output  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pain points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "table" && output != "yaml" {
				return fmt.Errorf("invalid output %q: must be one of %v", output, ValidOutputs)
			}

			c, _, err := rootOpts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			svc := c.Service()
			var records []painpoint.Record
			if cmd.Flags().Changed("class-id") {
				records = svc.ListByClassID(cmd.Context(), refresh, classID)
			} else {
				for _, rec := range svc.ListAll(cmd.Context(), refresh) {
					records = append(records, rec)
				}
				sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
			}

			return writeRecords(cmd.OutOrStdout(), output, records)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&refresh, "refresh", false, "read from the store instead of the snapshot")
	f.Int32Var(&classID, "class-id", 0, "only list records of this class")
	f.StringVarP(&output, "output", "o", "table", "output format (table|yaml)")
	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one pain point by record id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}

			c, _, err := rootOpts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			rec, ok := c.Service().GetByID(cmd.Context(), refresh, int32(id))
			if !ok {
				return errors.New("pain point not found")
			}
			return writeRecords(cmd.OutOrStdout(), "yaml", []painpoint.Record{rec})
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "read from the store instead of the snapshot")
	return cmd
}

func writeRecords(w io.Writer, output string, records []painpoint.Record) error {
	if output == "yaml" {
		if records == nil {
			records = []painpoint.Record{}
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCLASS\tUSER\tFLAGGED")
	for _, rec := range records {
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%t\n", rec.ID, rec.ClassID, rec.UserName, rec.Flagged)
	}
	return tw.Flush()
}
