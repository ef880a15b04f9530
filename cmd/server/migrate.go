package main

import (
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the payments and outbox tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			// opening a store applies its schema
			st, err := openStores(cfg.Store)
			if err != nil {
				return err
			}
			defer st.close()

			logger.Info("migrations applied", map[string]any{"driver": cfg.Store.Driver})
			return nil
		},
	}
}
