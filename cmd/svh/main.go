package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"servicehub/internal/app"
	"servicehub/internal/config"
	"servicehub/internal/domain"
	"servicehub/internal/logging"
	"servicehub/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "svh",
	Short: "Servicehub CLI",
	Long: `Servicehub matches clients with verified service providers and keeps an eye on project health.
- Providers: business profiles clients can search; admins verify them.
- Requests: a client asks a provider for work; pending -> accepted -> in_progress -> completed (cancelled is the exit).
- Projects: milestones, spend and team activity feed a 0-100 health score.
- Automation: a periodic cycle rescores projects, flags deadlines due within 3 days and writes daily insights.
- Workspace: servicehub.yml plus the .servicehub directory holding the sqlite database and snapshot documents.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SERVICEHUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("as", "cli-admin", "user id the command acts as")
	rootCmd.PersistentFlags().String("role", "admin", "role of the acting user (user or admin)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("as", rootCmd.PersistentFlags().Lookup("as"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(providerCmd())
	rootCmd.AddCommand(requestCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(automationCmd())
	rootCmd.AddCommand(focusCmd())
	rootCmd.AddCommand(insightsCmd())
}

// loadConfig reads servicehub.yml (defaults when absent) and applies
// SERVICEHUB_* environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	overrides := map[string]*string{
		"server.addr":         &cfg.Server.Addr,
		"server.base_path":    &cfg.Server.BasePath,
		"database.driver":     &cfg.Database.Driver,
		"database.dsn":        &cfg.Database.DSN,
		"snapshots.backend":   &cfg.Snapshots.Backend,
		"snapshots.dir":       &cfg.Snapshots.Dir,
		"webhooks.url":        &cfg.Webhooks.URL,
		"webhooks.secret":     &cfg.Webhooks.Secret,
		"logging.level":       &cfg.Logging.Level,
		"logging.format":      &cfg.Logging.Format,
		"automation.interval": &cfg.Automation.Interval,
	}
	for key, dst := range overrides {
		if v := strings.TrimSpace(viper.GetString(key)); v != "" {
			*dst = v
		}
	}
	if viper.IsSet("automation.enabled") {
		cfg.Automation.Enabled = viper.GetBool("automation.enabled")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := app.Open(ctx, viper.GetString("workspace"), cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

// caller is the identity local commands act as.
func caller() domain.Caller {
	role := domain.RoleUser
	if strings.EqualFold(viper.GetString("role"), string(domain.RoleAdmin)) {
		role = domain.RoleAdmin
	}
	return domain.Caller{ID: viper.GetString("as"), Role: role}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		Long:  "Serves the API (OpenAPI at <base>/openapi.json, Swagger UI at /docs). With automation.enabled the scheduler and webhook notifier run alongside.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if addr == "" {
					addr = rt.Config.Server.Addr
				}
				return rt.Serve(ctx, addr, viper.GetString("jwt-secret"))
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "servicehub.yml holds server, database, snapshot, automation, rate limit, webhook and logging settings. SERVICEHUB_* variables override it.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate servicehub.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				msg := ""
				if err != nil {
					msg = err.Error()
				}
				return printJSON(map[string]any{"ok": err == nil, "error": msg})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default servicehub.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func tokenCmd() *cobra.Command {
	tok := &cobra.Command{Use: "token", Short: "Manage API tokens"}
	var userID, role string
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token with SERVICEHUB_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			token, err := server.IssueToken(secret, userID, domain.Role(role), ttl, time.Now())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"token": token, "user_id": userID, "role": role})
			}
			fmt.Println(token)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "subject user id")
	issue.Flags().StringVar(&role, "role", string(domain.RoleUser), "user or admin")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	_ = issue.MarkFlagRequired("user")
	tok.AddCommand(issue)
	return tok
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}
