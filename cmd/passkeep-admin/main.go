package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dimitrije/passkeep/internal/config"
	"github.com/dimitrije/passkeep/internal/database"
	"github.com/dimitrije/passkeep/internal/database/sqlite"
	"github.com/dimitrije/passkeep/internal/logger"
	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/services"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// accounts is the part of a user store the admin commands need.
type accounts interface {
	Register(ctx context.Context, email, name, password string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetPassword(ctx context.Context, id uuid.UUID, password string) error
}

type store struct {
	users   accounts
	cleanup func(ctx context.Context) (int64, error)
	close   func()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "passkeep-admin",
		Short:         "Administrative tasks for a passkeep store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newCreateUserCmd(), newSetPasswordCmd(), newPurgeTokensCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}

func newCreateUserCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create-user <email>",
		Short: "Create an email/password account; the password is read from PASSKEEP_PASSWORD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFromEnv()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			user, err := st.users.Register(cmd.Context(), args[0], name, password)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email)")
	return cmd
}

func newSetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-password <email>",
		Short: "Set an account's password; the password is read from PASSKEEP_PASSWORD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFromEnv()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			user, err := st.users.GetByEmail(cmd.Context(), services.NormalizeEmail(args[0]))
			if errors.Is(err, services.ErrUserNotFound) {
				return fmt.Errorf("no user found with email: %s", args[0])
			}
			if err != nil {
				return err
			}
			if err := st.users.SetPassword(cmd.Context(), user.ID, password); err != nil {
				return fmt.Errorf("set password: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", user.Email)
			return nil
		},
	}
}

func newPurgeTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-tokens",
		Short: "Delete expired refresh tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			n, err := st.cleanup(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge tokens: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired refresh tokens\n", n)
			return nil
		},
	}
}

func passwordFromEnv() (string, error) {
	password := os.Getenv("PASSKEEP_PASSWORD")
	if strings.TrimSpace(password) == "" {
		return "", errors.New("PASSKEEP_PASSWORD is not set")
	}
	return password, nil
}

// openStore connects to the configured store and brings its schema up to date.
func openStore(ctx context.Context) (*store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if cfg.StoreDriver == config.StoreSQLite {
		db, err := sqlite.NewDB(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.RunMigrations(db.Writer); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &store{
			users:   sqlite.NewUserRepo(db),
			cleanup: sqlite.NewTokenRepo(db).CleanupExpired,
			close:   func() { _ = db.Close() },
		}, nil
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &store{
		users:   services.NewUserService(db),
		cleanup: services.NewTokenService(db).CleanupExpired,
		close:   db.Close,
	}, nil
}
