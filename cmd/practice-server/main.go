package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gpcare/practice/internal/config"
	"github.com/gpcare/practice/internal/domain/practice"
	"github.com/gpcare/practice/internal/platform/auth"
	"github.com/gpcare/practice/internal/platform/db"
	"github.com/gpcare/practice/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "practice-server",
		Short: "GP practice management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(practiceCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cfg, newLogger(cfg))
		},
	}
}

// withPool loads config, connects, and hands the pool to fn.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

// migrationSource prefers a directory on disk so SQL can be iterated on
// without rebuilding; otherwise the embedded set is used.
func migrationSource(cfg *config.Config) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				count, err := db.NewMigrator(pool, migrationSource(cfg)).Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s).\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, migrationSource(cfg)).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
				}
				return w.Flush()
			})
		},
	})

	return cmd
}

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Manage practices",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new practice",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			ods, _ := cmd.Flags().GetString("ods-code")
			tz, _ := cmd.Flags().GetString("timezone")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				p := &practice.Practice{Name: name, Timezone: tz}
				if ods != "" {
					p.ODSCode = &ods
				}
				if err := practice.NewService(practice.NewRepoPG(pool)).Create(ctx, p); err != nil {
					return err
				}
				fmt.Printf("Created practice %s (%s)\n", p.ID, p.Name)
				return nil
			})
		},
	}
	createCmd.Flags().String("name", "", "Practice name")
	createCmd.Flags().String("ods-code", "", "ODS organisation code, e.g. A81001")
	createCmd.Flags().String("timezone", practice.DefaultTimezone, "IANA timezone")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List practices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				items, total, err := practice.NewService(practice.NewRepoPG(pool)).List(ctx, 1000, 0)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tODS\tTIMEZONE")
				for _, p := range items {
					ods := ""
					if p.ODSCode != nil {
						ods = *p.ODSCode
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, ods, p.Timezone)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Printf("%d practice(s)\n", total)
				return nil
			})
		},
	})

	return cmd
}

// tokenCmd signs a bearer token with AUTH_SIGNING_KEY for local testing.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			practiceID, _ := cmd.Flags().GetString("practice")
			userID, _ := cmd.Flags().GetString("user")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AuthSigningKey == "" {
				return fmt.Errorf("AUTH_SIGNING_KEY is not set")
			}
			if _, err := uuid.Parse(practiceID); err != nil {
				return fmt.Errorf("--practice must be a practice id: %w", err)
			}
			if !auth.ValidRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			tok, err := auth.IssueToken([]byte(cfg.AuthSigningKey),
				auth.Identity{UserID: userID, PracticeID: practiceID, Role: role}, cfg.AuthIssuer, ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().String("practice", "", "Practice id")
	cmd.Flags().String("user", "dev-user", "Subject (staff id)")
	cmd.Flags().String("role", auth.RoleReceptionist, "Role claim")
	cmd.Flags().Duration("ttl", 8*time.Hour, "Token lifetime")
	return cmd
}
