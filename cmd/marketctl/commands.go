package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/altarlane/marketplace/internal/app"
	"github.com/altarlane/marketplace/internal/cli"
	"github.com/altarlane/marketplace/internal/config"
	"github.com/altarlane/marketplace/internal/logging"
	"github.com/altarlane/marketplace/internal/postgres"
	"github.com/altarlane/marketplace/internal/runtime"
	catalogapi "github.com/altarlane/marketplace/services/catalog/api"
	catalogsupabase "github.com/altarlane/marketplace/services/catalog/supabase"
)

var Version = "dev"

// env holds the process dependencies commands resolve at run time.
type env struct {
	loadConfig  func(dotenv string) (*config.Config, error)
	connect     func(ctx context.Context, cfg *config.Config) (*app.Clients, error)
	logger      func(cfg *config.Config) *logging.Logger
	migrateUp   func(dsn string) (uint, error)
	migrateDown func(dsn string, steps int) (uint, error)
}

func defaultEnv() *env {
	return &env{
		loadConfig: config.LoadFile,
		connect:    app.Connect,
		logger: func(cfg *config.Config) *logging.Logger {
			l := logging.New("marketctl", cfg.LogLevel, cfg.LogFormat)
			l.SetOutput(os.Stderr)
			return l
		},
		migrateUp:   postgres.MigrateUp,
		migrateDown: postgres.MigrateDown,
	}
}

func newRootCmd(e *env) *cobra.Command {
	var dotenv string
	root := &cobra.Command{
		Use:           "marketctl",
		Short:         "Marketplace maintenance commands",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dotenv, "env-file", ".env", "dotenv file loaded before the environment")

	load := func() (*config.Config, error) {
		return e.loadConfig(dotenv)
	}
	root.AddCommand(seedCmd(e, load))
	root.AddCommand(expireHoldsCmd(e, load))
	root.AddCommand(migrateCmd(e, load))
	root.AddCommand(configCmd(load))
	return root
}

func seedCmd(e *env, load func() (*config.Config, error)) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert vendors and packages from a YAML catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			clients, err := e.connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer clients.Close()

			svc, err := catalogapi.New(catalogapi.Config{
				Store:  catalogsupabase.NewRepository(clients.Supabase, cfg.SupabaseMediaBucket),
				Logger: e.logger(cfg),
			})
			if err != nil {
				return err
			}
			res, err := svc.SeedFromFile(ctx, file)
			if err != nil {
				return err
			}
			cli.NewPrinter(cmd.OutOrStdout()).Success("seeded %d vendors and %d packages from %s", res.Vendors, res.Packages, file)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func expireHoldsCmd(e *env, load func() (*config.Config, error)) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "expire-holds",
		Short: "Expire overdue pending orders and release their booking holds once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			clients, err := e.connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer clients.Close()

			a, err := app.New(cfg, clients, e.logger(cfg), nil)
			if err != nil {
				return err
			}
			n, err := a.Checkout.ExpireHolds(ctx)
			if err != nil {
				return fmt.Errorf("expired %d orders before failing: %w", n, err)
			}
			cli.NewPrinter(cmd.OutOrStdout()).Success("expired %d pending orders", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline")
	return cmd
}

func migrateCmd(e *env, load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the Postgres schema at DATABASE_URL",
	}
	dsn := func() (string, error) {
		cfg, err := load()
		if err != nil {
			return "", err
		}
		if !cfg.UsePostgres() {
			return "", fmt.Errorf("DATABASE_URL is not set")
		}
		return cfg.DatabaseURL, nil
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := dsn()
			if err != nil {
				return err
			}
			v, err := e.migrateUp(url)
			if err != nil {
				return err
			}
			cli.NewPrinter(cmd.OutOrStdout()).Success("schema at version %d", v)
			return nil
		},
	})
	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := dsn()
			if err != nil {
				return err
			}
			v, err := e.migrateDown(url, steps)
			if err != nil {
				return err
			}
			cli.NewPrinter(cmd.OutOrStdout()).Warning("rolled back %d step(s), schema at version %d", steps, v)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)
	return cmd
}

func configCmd(load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect gateway configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate configuration without connecting to anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			p := cli.NewPrinter(cmd.OutOrStdout())
			if err := cfg.Validate(); err != nil {
				p.Error("%v", err)
				return fmt.Errorf("configuration check failed")
			}
			p.Success("configuration is valid for %s", runtime.Env())
			return nil
		},
	})
	return cmd
}

func printConfig(w io.Writer, cfg *config.Config) {
	p := cli.NewPrinter(w)
	p.Heading("Marketplace configuration")
	p.Field("APP_ENV", runtime.Env())
	p.Field("HTTP_ADDR", cfg.HTTPAddr)
	p.Field("SUPABASE_URL", valueOr(cfg.SupabaseURL, "not set"))
	p.Field("SUPABASE_SERVICE_KEY", secretStatus(cfg.SupabaseServiceKey))
	p.Field("SUPABASE_JWT_SECRET", secretStatus(cfg.SupabaseJWTSecret))
	p.Field("REDIS_URL", valueOr(cfg.RedisURL, "not set"))
	p.Field("DATABASE_URL", secretStatus(cfg.DatabaseURL))
	p.Field("STRIPE_SECRET_KEY", secretStatus(cfg.StripeSecretKey))
	p.Field("STRIPE_WEBHOOK_SECRET", secretStatus(cfg.StripeWebhookSecret))
	p.Field("CHECKOUT_CURRENCY", cfg.CheckoutCurrency)
	p.Field("BOOKING_HOLD_TTL", cfg.BookingHoldTTL.String())
	p.Field("ORDER_EXPIRY_SCHEDULE", cfg.OrderExpirySchedule)
	p.Field("CORS_ALLOWED_ORIGINS", strings.Join(cfg.Origins(), ", "))
}

func secretStatus(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
