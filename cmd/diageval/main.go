package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/diag-eval/internal/config"
)

type cliState struct {
	configPath string
	cfg        *config.Config

	ids        []string
	categories []string
	tags       []string
	limit      int
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errCasesFailed) {
			osExit(1)
			return
		}
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath}

	root := &cobra.Command{
		Use:           "diageval",
		Short:         "Evaluate the workspace diagnostic assistant",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", st.configPath, "path to config file")

	root.AddCommand(newRunCmd(st))
	root.AddCommand(newSweepCmd(st))
	root.AddCommand(newListCmd(st))
	root.AddCommand(newServeCmd(st))
	return root
}

func loadConfig(st *cliState) error {
	cfg, err := config.Load(st.configPath)
	if err != nil {
		return err
	}
	st.cfg = cfg
	return nil
}

func addFilterFlags(cmd *cobra.Command, st *cliState) {
	cmd.Flags().StringSliceVar(&st.ids, "ids", nil, "case id allow-list")
	cmd.Flags().StringSliceVar(&st.categories, "categories", nil, "category allow-list")
	cmd.Flags().StringSliceVar(&st.tags, "tags", nil, "tag allow-list (a case matches if any tag matches)")
	cmd.Flags().IntVar(&st.limit, "limit", 0, "max cases after filtering")
}

func (st *cliState) selection() config.Selection {
	return config.Selection{
		IDs:        st.ids,
		Categories: st.categories,
		Tags:       st.tags,
		Limit:      st.limit,
	}
}
