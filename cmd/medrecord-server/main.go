package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medrecord/medrecord/internal/config"
	"github.com/medrecord/medrecord/internal/domain/doctor"
	"github.com/medrecord/medrecord/internal/domain/patientfile"
	"github.com/medrecord/medrecord/internal/platform/db"
	"github.com/medrecord/medrecord/internal/platform/idp"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "medrecord-server",
		Short:        "Patient file medical record API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(doctorCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// openMigrator loads the configuration and opens a small pool for the
// migrate commands. The returned func closes the pool.
func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, cfg.MigrationsDir), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, closePool, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, closePool, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}

	cmd.AddCommand(upCmd, statusCmd)
	return cmd
}

// doctorCmd bootstraps doctor records, typically the first administrator,
// without going through the API.
func doctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Manage doctor records",
	}

	var d doctor.Doctor
	var specialties []string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a doctor record",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			secret := os.Getenv("MEDRECORD_DOCTOR_SECRET")
			if secret == "" {
				return fmt.Errorf("MEDRECORD_DOCTOR_SECRET must hold the new doctor's secret")
			}

			logger := newLogger(cfg.Env)
			svc := doctor.NewService(doctor.NewRepoPG(pool), patientfile.NewRepoPG(pool),
				idp.NewSync(idp.Noop{}, logger), logger)
			d.Specialties = specialties
			if err := svc.Create(ctx, &d, secret); err != nil {
				return err
			}
			fmt.Printf("Created doctor %s (admin=%t).\n", d.ID, d.Admin)
			return nil
		},
	}
	createCmd.Flags().StringVar(&d.ID, "id", "", "Doctor id, e.g. D001")
	createCmd.Flags().StringVar(&d.FirstName, "first-name", "", "First name")
	createCmd.Flags().StringVar(&d.LastName, "last-name", "", "Last name")
	createCmd.Flags().StringVar(&d.Email, "email", "", "Email address")
	createCmd.Flags().StringSliceVar(&specialties, "specialty", nil, "Specialty, repeatable")
	createCmd.Flags().BoolVar(&d.Admin, "admin", false, "Grant the admin role")
	_ = createCmd.MarkFlagRequired("id")
	_ = createCmd.MarkFlagRequired("last-name")

	cmd.AddCommand(createCmd)
	return cmd
}
