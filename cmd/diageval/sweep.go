package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/diag-eval/internal/aggregate"
	"github.com/stellarlinkco/diag-eval/internal/config"
)

type sweepOptions struct {
	modes      []string
	iterations int
	output     string
}

func newSweepCmd(st *cliState) *cobra.Command {
	var opts sweepOptions

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run mode × iteration sweeps and aggregate the results",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, st, &opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.modes, "modes", nil, "run modes, in order (defaults to config)")
	cmd.Flags().IntVar(&opts.iterations, "iterations", 0, "iterations per mode (defaults to config)")
	cmd.Flags().StringVar(&opts.output, "output", "table", "output format: table|json")
	addFilterFlags(cmd, st)
	return cmd
}

func runSweep(cmd *cobra.Command, st *cliState, opts *sweepOptions) error {
	names := opts.modes
	if len(names) == 0 {
		names = st.cfg.Evaluation.Modes
	}
	modes, err := config.ModesByName(names)
	if err != nil {
		return err
	}

	iterations := opts.iterations
	if iterations <= 0 {
		iterations = st.cfg.Evaluation.Iterations
	}
	if iterations <= 0 {
		iterations = 1
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

	o, storeHandle, err := buildOrchestrator(st.cfg, modes, logger)
	if err != nil {
		return err
	}
	defer storeHandle.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := o.Sweep(ctx, modes, iterations, reg, cases)
	if err != nil {
		return err
	}

	analysis := aggregate.Build(res.Runs, st.cfg.Evaluation.ProblemCutoff)
	if err := renderSweep(cmd.OutOrStdout(), format, res, analysis); err != nil {
		return err
	}

	if len(res.Failed) > 0 {
		return errCasesFailed
	}
	for _, ca := range analysis.Cases {
		if ca.Consistency != aggregate.StablePass {
			return errCasesFailed
		}
	}
	return nil
}
