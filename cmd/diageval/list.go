package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List evaluation cases",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadCatalog(st.cfg)
			if err != nil {
				return err
			}
			cases := reg.Filter(st.selection())

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tMODE\tTAGS\tTITLE")
			for _, c := range cases {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					c.ID, c.Category, c.Mode, strings.Join(c.Tags, ","), c.Title)
			}
			return tw.Flush()
		},
	}

	addFilterFlags(cmd, st)
	return cmd
}
