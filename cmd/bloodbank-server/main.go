package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bloodbank/bloodbank/internal/config"
	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/platform/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bloodbank-server",
		Short: "Blood and organ bank inventory server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(bankCmd())
	rootCmd.AddCommand(inventoryCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
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
			return runServer(cfg)
		},
	}
}

// requirePostgres rejects the memory backend for commands whose writes must
// outlive the process.
func requirePostgres(cfg *config.Config, what string) error {
	if !cfg.UsesPostgres() {
		return fmt.Errorf("%s requires STORE_BACKEND=%s", what, config.BackendPostgres)
	}
	return nil
}

// openMigrator honours the --dir and --schema overrides of the migrate command.
func openMigrator(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*db.Migrator, func(), error) {
	if err := requirePostgres(cfg, "migrate"); err != nil {
		return nil, nil, err
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.MigrationsDir = dir
	}
	if schema, _ := cmd.Flags().GetString("schema"); schema != "" {
		cfg.DBSchema = schema
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, cfg.MigrationsDir, cfg.DBSchema), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	cmd.PersistentFlags().String("dir", "", "Migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.PersistentFlags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer closePool()

			fmt.Printf("Running migrations on schema: %s\n", cfg.DBSchema)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", cfg.DBSchema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func bankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Manage banks",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a blood or organ bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			location, _ := cmd.Flags().GetString("location")
			kind, _ := cmd.Flags().GetString("kind")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := requirePostgres(cfg, "bank create"); err != nil {
				return err
			}
			ctx := context.Background()
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			svc := inventory.NewService(st.units, st.tx)
			b := &inventory.Bank{Name: name, Location: location, Kind: inventory.BankKind(kind)}
			if err := svc.CreateBank(ctx, b); err != nil {
				return err
			}
			fmt.Printf("Created %s %q with id %s\n", b.Kind, b.Name, b.ID)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Bank name")
	createCmd.Flags().String("location", "", "Bank location")
	createCmd.Flags().String("kind", string(inventory.BloodBank), "blood_bank or organ_bank")
	cmd.AddCommand(createCmd)

	return cmd
}

func inventoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Manage inventory slots",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Ensure all eight blood group slots exist at a bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("bank")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := requirePostgres(cfg, "inventory init"); err != nil {
				return err
			}
			bankID, ok := cfg.DefaultBloodBank()
			if raw != "" {
				if bankID, err = uuid.Parse(raw); err != nil {
					return fmt.Errorf("invalid --bank: %w", err)
				}
				ok = true
			}
			if !ok {
				return fmt.Errorf("--bank is required when DEFAULT_BLOOD_BANK_ID is not set")
			}

			ctx := context.Background()
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			units, err := inventory.NewService(st.units, st.tx).InitializeBaselineInventory(ctx, bankID)
			if err != nil {
				return err
			}
			for _, u := range units {
				fmt.Printf("%-4s %5d  %s\n", u.Subtype, u.Quantity, u.ID)
			}
			return nil
		},
	}
	initCmd.Flags().String("bank", "", "Blood bank id (defaults to DEFAULT_BLOOD_BANK_ID)")
	cmd.AddCommand(initCmd)

	return cmd
}

func runServer(cfg *config.Config) error {
	logger := newLogger(cfg)

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open store")
	}
	defer st.close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("store ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e, err := newServer(ctx, cfg, st, logger, reg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
