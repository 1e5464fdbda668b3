package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bigkaa/dataviz/internal/config"
	"github.com/bigkaa/dataviz/internal/database"
	"github.com/bigkaa/dataviz/internal/repository"
	"github.com/bigkaa/dataviz/internal/service"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Управление членством пользователей в группах Admin, Analyst, Viewer",
}

var groupsListCmd = &cobra.Command{
	Use:   "list <username>",
	Short: "Показать группы пользователя",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUserService(cmd, func(ctx context.Context, users *service.UserService) error {
			groups, err := users.Groups(ctx, args[0])
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				cmd.Println("(нет групп)")
				return nil
			}
			cmd.Println(strings.Join(groups, "\n"))
			return nil
		})
	},
}

var groupsGrantCmd = &cobra.Command{
	Use:   "grant <username> <group>",
	Short: "Добавить пользователя в группу",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUserService(cmd, func(ctx context.Context, users *service.UserService) error {
			if err := users.Grant(ctx, args[0], args[1]); err != nil {
				return err
			}
			cmd.Printf("%s добавлен в группу %s\n", args[0], args[1])
			return nil
		})
	},
}

var groupsRevokeCmd = &cobra.Command{
	Use:   "revoke <username> <group>",
	Short: "Исключить пользователя из группы",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUserService(cmd, func(ctx context.Context, users *service.UserService) error {
			if err := users.Revoke(ctx, args[0], args[1]); err != nil {
				return err
			}
			cmd.Printf("%s исключён из группы %s\n", args[0], args[1])
			return nil
		})
	},
}

func init() {
	groupsCmd.AddCommand(groupsListCmd)
	groupsCmd.AddCommand(groupsGrantCmd)
	groupsCmd.AddCommand(groupsRevokeCmd)
}

// withUserService подключается к PostgreSQL и передаёт UserService в fn.
func withUserService(cmd *cobra.Command, fn func(ctx context.Context, users *service.UserService) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("загрузка конфигурации: %w", err)
	}
	logger := config.SetupLogger(cfg)

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("подключение к PostgreSQL: %w", err)
	}
	defer pool.Close()

	users := service.NewUserService(repository.NewUserRepository(pool), service.NewValidator(), logger)
	if err := fn(ctx, users); err != nil {
		logger.Debug("Команда groups завершилась ошибкой", slog.String("error", err.Error()))
		return err
	}
	return nil
}
