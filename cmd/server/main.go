package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var confPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "payment-mediator",
		Short:         "Payment lifecycle mediator between a payment processor and an operator chat",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&confPath, "conf", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(retryCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
