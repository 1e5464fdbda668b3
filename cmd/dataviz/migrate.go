package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bigkaa/dataviz/internal/config"
	"github.com/bigkaa/dataviz/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Управление схемой БД",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Применить все миграции",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("загрузка конфигурации: %w", err)
		}
		return database.Migrate(cfg, config.SetupLogger(cfg))
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Откатить миграции (по умолчанию одну)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("некорректное число шагов %q", args[0])
			}
			steps = n
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("загрузка конфигурации: %w", err)
		}
		return database.MigrateDown(cfg, steps, config.SetupLogger(cfg))
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}
