// Точка входа dataviz - сервис загрузки табличных файлов, моделей данных
// и визуализации. Команды: serve, migrate, groups.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bigkaa/dataviz/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "dataviz",
	Short:         "dataviz - API табличных данных и визуализации",
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(groupsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Ошибка:", err)
		os.Exit(1)
	}
}
