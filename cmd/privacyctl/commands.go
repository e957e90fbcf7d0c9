package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/app"
	"github.com/yungbote/politicas-backend/internal/data/db"
	"github.com/yungbote/politicas-backend/internal/data/repos"
	"github.com/yungbote/politicas-backend/internal/domain/audit"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/services"
)

var (
	promoteEmail string
	promoteRole  string
	exportOut    string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(func(log *logger.Logger, pg *db.PostgresService) error {
			if err := pg.AutoMigrateAll(); err != nil {
				return fmt.Errorf("automigrate: %w", err)
			}
			log.Info("Schema up to date", "driver", pg.Driver())
			return nil
		})
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Change a user's role",
	RunE: func(cmd *cobra.Command, _ []string) error {
		role := user.Role(strings.ToUpper(strings.TrimSpace(promoteRole)))
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", promoteRole)
		}
		return withDB(func(log *logger.Logger, pg *db.PostgresService) error {
			return promote(cmd.Context(), log, pg.DB(), promoteEmail, role)
		})
	},
}

var exportUsersCmd = &cobra.Command{
	Use:   "export-users",
	Short: "Write the users CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(func(log *logger.Logger, pg *db.PostgresService) error {
			var w io.Writer = cmd.OutOrStdout()
			if exportOut != "" && exportOut != "-" {
				f, err := os.Create(exportOut)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := services.WriteUsersCSV(cmd.Context(), w, repos.NewUserRepo(pg.DB(), log), repos.NewPolicyRepo(pg.DB(), log))
			if err != nil {
				return fmt.Errorf("export users: %w", err)
			}
			log.Info("Users exported", "rows", n, "out", exportOut)
			return nil
		})
	},
}

var cleanupTokensCmd = &cobra.Command{
	Use:   "cleanup-tokens",
	Short: "Delete expired verification tokens and sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(func(log *logger.Logger, pg *db.PostgresService) error {
			dbc := dbctx.Context{Ctx: cmd.Context()}
			tokens := services.NewTokenService(pg.DB(), log, repos.NewVerificationTokenRepo(pg.DB(), log), nil)
			n, err := tokens.CleanupExpired(dbc)
			if err != nil {
				return err
			}
			sessions, err := repos.NewSessionRepo(pg.DB(), log).DeleteExpired(dbc, time.Now())
			if err != nil {
				return fmt.Errorf("delete expired sessions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired tokens and %d expired sessions\n", n, sessions)
			return nil
		})
	},
}

func init() {
	promoteCmd.Flags().StringVar(&promoteEmail, "email", "", "email of the user to change")
	promoteCmd.Flags().StringVar(&promoteRole, "role", string(user.RoleAdmin), "USER, ADMIN or SUPER_ADMIN")
	_ = promoteCmd.MarkFlagRequired("email")
	exportUsersCmd.Flags().StringVar(&exportOut, "out", "-", "output file, - for stdout")

	rootCmd.AddCommand(migrateCmd, promoteCmd, exportUsersCmd, cleanupTokensCmd)
}

func withDB(fn func(log *logger.Logger, pg *db.PostgresService) error) error {
	app.LoadDotEnv()
	log, err := app.NewLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	pg, err := db.NewPostgresService(log, db.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pg.Close()
	return fn(log, pg)
}

func promote(ctx context.Context, log *logger.Logger, gdb *gorm.DB, email string, role user.Role) error {
	users := repos.NewUserRepo(gdb, log)
	auditSvc := services.NewAuditService(gdb, log, repos.NewAuditLogRepo(gdb, log))
	found, err := users.GetByEmails(dbctx.Context{Ctx: ctx}, []string{email})
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return fmt.Errorf("no user with email %q", email)
	}
	target := found[0]
	if target.Role == role {
		log.Info("Role unchanged", "user_id", target.ID, "role", role)
		return nil
	}
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := users.UpdateFields(dbc, target.ID, map[string]any{"role": role}); err != nil {
			return err
		}
		return auditSvc.Record(dbc, services.AuditEntry{
			Action:       audit.ActionUserAdminUpdated,
			ResourceType: audit.ResourceUser,
			ResourceID:   target.ID.String(),
			Details:      map[string]any{"role": map[string]any{"from": target.Role, "to": role}, "via": "privacyctl"},
		})
	})
}
