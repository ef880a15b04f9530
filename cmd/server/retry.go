package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Run one retry scan and deliver the resulting notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			retried, scanErr := a.service.ScanAndRetry(ctx)
			a.dispatcher.DispatchOnce(ctx)

			fmt.Fprintf(cmd.OutOrStdout(), "retried %d payment(s)\n", retried)
			return scanErr
		},
	}
}
