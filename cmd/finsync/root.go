package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/celerix-finsync/internal/config"
	"github.com/celerix-dev/celerix-finsync/internal/engine"
	"github.com/celerix-dev/celerix-finsync/internal/progress"
	"github.com/celerix-dev/celerix-finsync/internal/workers"
	"github.com/celerix-dev/celerix-finsync/pkg/schema"
	"github.com/celerix-dev/celerix-finsync/pkg/tables"
)

var rootCmd = &cobra.Command{
	Use:           "finsync",
	Short:         "Operate the finsync cache against a table service",
	Long:          "finsync prefetches, inspects and mutates the cached view of a student's learning, wallet and job data.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("user", "", "Email of the acting user (overrides FINSYNC_USER)")
	rootCmd.PersistentFlags().String("role", string(schema.RoleStudent), "Role of the acting user: student or educator")
	rootCmd.PersistentFlags().String("token", "", "User bearer token for writes (overrides FINSYNC_TOKEN)")

	rootCmd.AddCommand(prefetchCmd)
	rootCmd.AddCommand(walletCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(rewardCmd)
	rootCmd.AddCommand(mirrorCmd)
}

// app is everything a subcommand needs, wired from configuration.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	remote   tables.Store
	close    func() error
	core     *engine.Core
	progress *progress.Engine
	user     schema.Identity
	token    string
}

// setup loads configuration and wires the Core for the acting user.
func setup(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Local.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Log.NewLogger(os.Stderr)

	email, _ := cmd.Flags().GetString("user")
	if email == "" {
		email = os.Getenv("FINSYNC_USER")
	}
	role, _ := cmd.Flags().GetString("role")
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("FINSYNC_TOKEN")
	}
	user := schema.Identity{Email: email, Role: schema.Role(role)}.Normalized()

	remote, closeRemote, err := tables.Open(cfg.Remote.URL, cfg.Remote.APIKey,
		tables.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		tables.WithRetries(cfg.Remote.Retries, 200*time.Millisecond),
		tables.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	creds := tables.NewStaticCredentials(cfg.Remote.APIKey)
	if token != "" && user.Known() {
		creds.SetUserToken(user.Email, token)
	}

	ledger, err := engine.NewLedgerFiles(cfg.Local.DataDir, []byte(cfg.Local.Secret), log)
	if err != nil {
		return nil, fmt.Errorf("open wallet store: %w", err)
	}
	pool := workers.New(cfg.Workers.Size, cfg.Workers.Timeout, log)
	core := engine.New(remote, ledger,
		engine.WithCredentials(creds),
		engine.WithPool(pool),
		engine.WithLogger(log),
	)
	return &app{
		cfg:      cfg,
		log:      log,
		remote:   remote,
		close:    closeRemote,
		core:     core,
		progress: progress.New(core, log),
		user:     user,
		token:    token,
	}, nil
}

// run wires the app, runs fn and waits for background writes to finish
// before releasing the store.
func run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	err = fn(cmd.Context(), a)
	a.progress.Wait()
	if cerr := a.close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close store: %w", cerr))
	}
	return err
}

// requireUser is used by commands that act on behalf of one user.
func (a *app) requireUser() error {
	if !a.user.Known() {
		return errors.New("no user: pass --user or set FINSYNC_USER")
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
