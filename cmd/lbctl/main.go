package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/osvaldoandrade/leaderboards/internal/services"
	"github.com/osvaldoandrade/leaderboards/pkg/app"
	"github.com/osvaldoandrade/leaderboards/pkg/auth"
	"github.com/osvaldoandrade/leaderboards/pkg/config"
	"github.com/osvaldoandrade/leaderboards/pkg/persistence"
	_ "github.com/osvaldoandrade/leaderboards/pkg/persistence/redis" // Register redis store

	"github.com/spf13/cobra"
)

// env carries what every subcommand needs once the config is loaded.
type env struct {
	cfg      *config.Config
	store    persistence.PluginPersistence
	codec    *auth.Codec
	accounts services.AccountService
	modships services.ModshipService
}

func (e *env) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

func main() {
	configPath := getenv("LEADERBOARDS_CONFIG_PATH", "")
	ui := newUI()

	root := &cobra.Command{
		Use:   "lbctl",
		Short: "leaderboards admin CLI",
		Long:  "lbctl issues and inspects session tokens and manages users and moderators directly in the store.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "Server config file (env LEADERBOARDS_CONFIG_PATH)")

	var current *env
	open := func() (*env, error) {
		if current != nil {
			return current, nil
		}
		e, err := openEnv(configPath)
		if err != nil {
			return nil, err
		}
		if e.cfg.StoreProvider == "memory" {
			fmt.Fprintln(os.Stderr, ui.warn("[WARN]"), "store is in-memory; changes vanish when lbctl exits")
		}
		current = e
		return e, nil
	}

	root.AddCommand(tokenCmd(open, ui))
	root.AddCommand(userCmd(open, ui))
	root.AddCommand(modshipCmd(open, ui))

	closeEnv := func() {
		if current != nil {
			current.Close()
		}
	}
	if err := execute(root, closeEnv); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func openEnv(configPath string) (*env, error) {
	// config.LoadConfig prints a summary through the std logger; keep stdout clean for tokens.
	log.SetOutput(io.Discard)
	cfg, err := config.LoadConfigOptional(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	store, err := app.OpenStore(cfg, loc)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.WaitForStore(ctx, store, cfg.StoreConnectAttempts, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		_ = store.Close()
		return nil, err
	}

	codec := auth.NewCodec(auth.GetInstance(cfg), auth.WithTTL(cfg.TokenTTL()))
	return &env{
		cfg:      cfg,
		store:    store,
		codec:    codec,
		accounts: services.NewAccountService(store.UserStorage(), codec, nil, nil),
		modships: services.NewModshipService(store.UserStorage(), store.ModshipStorage(), nil, nil),
	}, nil
}

// execute runs root and releases the store whether or not the command failed.
// cobra skips post-run hooks on error, and os.Exit skips defers in main.
func execute(root *cobra.Command, closeEnv func()) error {
	defer closeEnv()
	return root.Execute()
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func required(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New(name + " is required")
	}
	return nil
}
