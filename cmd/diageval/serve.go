package main

import (
	"github.com/spf13/cobra"

	"github.com/stellarlinkco/diag-eval/api"
	"github.com/stellarlinkco/diag-eval/internal/store"
)

func newServeCmd(st *cliState) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve persisted results over HTTP",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			storeHandle, err := store.Open(st.cfg)
			if err != nil {
				return err
			}
			defer storeHandle.Close()

			logger := buildLogger()
			defer logger.Sync()

			srv, err := api.NewServer(st.cfg, storeHandle, logger)
			if err != nil {
				return err
			}
			return srv.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
