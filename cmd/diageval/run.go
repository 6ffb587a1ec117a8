package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/diag-eval/internal/config"
)

var errCasesFailed = errors.New("diageval: cases failed")

type runOptions struct {
	mode   string
	output string
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one evaluation pass",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", config.DefaultMode, "run mode")
	cmd.Flags().StringVar(&opts.output, "output", "table", "output format: table|json")
	addFilterFlags(cmd, st)
	return cmd
}

func runOnce(cmd *cobra.Command, st *cliState, opts *runOptions) error {
	mode, err := config.ModeByName(opts.mode)
	if err != nil {
		return err
	}
	format, err := parseOutputFormat(opts.output)
	if err != nil {
		return err
	}

	reg, err := loadCatalog(st.cfg)
	if err != nil {
		return err
	}
	cases := reg.Filter(st.selection())
	if len(cases) == 0 {
		return fmt.Errorf("diageval: no cases match the filters")
	}

	logger := buildLogger()
	defer logger.Sync()

	modes := []config.RunMode{mode}
	o, storeHandle, err := buildOrchestrator(st.cfg, modes, logger)
	if err != nil {
		return err
	}
	defer storeHandle.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := o.Sweep(ctx, modes, 1, reg, cases)
	if err != nil {
		return err
	}

	if err := renderSweep(cmd.OutOrStdout(), format, res, nil); err != nil {
		return err
	}

	if len(res.Failed) > 0 {
		return errCasesFailed
	}
	for _, run := range res.Runs {
		if run.Summary.Failed > 0 || run.Summary.Errored > 0 {
			return errCasesFailed
		}
	}
	return nil
}
