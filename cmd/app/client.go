package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/starford/arbor/internal"
	"github.com/starford/arbor/internal/folderclient"
	"github.com/starford/arbor/internal/mcpserver"
	"github.com/starford/arbor/internal/mirror"
	"github.com/starford/arbor/internal/store"
	"github.com/starford/arbor/internal/tree"
	"github.com/starford/arbor/internal/view"
	pkgconfig "github.com/starford/arbor/pkg/config"
)

// clientEnv holds what every client command needs.
type clientEnv struct {
	store  *store.Store
	logger *slog.Logger
}

// newClientEnv builds a store over the folder service named by the config.
// A missing config file falls back to defaults. Logs go to stderr so stdout
// stays free for output.
func newClientEnv(cmd *cli.Command) (*clientEnv, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if u := cmd.String("url"); u != "" {
		cfg.Client.BaseURL = u
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	opts := []folderclient.Option{folderclient.WithTimeout(cfg.Client.Timeout)}
	token := cfg.Client.Token
	if token == "" {
		token = cfg.Auth.Token
	}
	if token != "" {
		opts = append(opts, folderclient.WithToken(token))
	}

	st := store.New(folderclient.New(cfg.Client.BaseURL, opts...), store.WithLogger(logger))
	return &clientEnv{store: st, logger: logger}, nil
}

func (e *clientEnv) close() { e.store.Close() }

// await waits for op and returns the store's error message, if any.
func (e *clientEnv) await(ctx context.Context, op <-chan struct{}) error {
	select {
	case <-op:
	case <-ctx.Done():
		return ctx.Err()
	}
	if msg := e.store.Snapshot().LastError; msg != "" {
		return errors.New(msg)
	}
	return nil
}

func printTree(ctx context.Context, cmd *cli.Command) error {
	env, err := newClientEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.await(ctx, env.store.Load()); err != nil {
		return err
	}
	var opts []view.Option
	if cmd.Bool("ids") {
		opts = append(opts, view.WithIDs())
	}
	v := view.New(opts...)
	snap := env.store.Snapshot()
	v.ExpandAll(snap.Forest)
	return v.Render(os.Stdout, snap)
}

func makeFolder(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return errors.New("folder name is required")
	}
	var parentID *string
	if p := cmd.String("parent"); p != "" {
		parentID = &p
	}

	env, err := newClientEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.await(ctx, env.store.Load()); err != nil {
		return err
	}
	before := env.store.Snapshot().Forest
	if _, ok := tree.Children(before, parentID); !ok {
		return fmt.Errorf("no folder with id %q", *parentID)
	}
	if err := env.await(ctx, env.store.CreateFolder(name, parentID)); err != nil {
		return err
	}
	if n, ok := tree.Added(before, env.store.Snapshot().Forest, parentID); ok {
		fmt.Println(n.ID)
	}
	return nil
}

func removeFolder(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()

	env, err := newClientEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	return env.await(ctx, env.store.DeleteFolder(id))
}

func runShell(ctx context.Context, cmd *cli.Command) error {
	env, err := newClientEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("shell requires an interactive terminal; use tree for plain output")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	p := tea.NewProgram(view.NewBrowser(env.store, view.New()), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runMCP(_ context.Context, cmd *cli.Command) error {
	env, err := newClientEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	return mcpserver.New(env.store).ServeStdio()
}

func runMirror(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return errors.New("directory is required")
	}
	src, err := mirror.NewSource(dir)
	if err != nil {
		return err
	}

	env, err := newClientEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	var parentID *string
	if p := cmd.String("parent"); p != "" {
		parentID = &p
	}
	m := mirror.New(env.store, src, parentID, env.logger)

	n, err := m.Import(ctx)
	if err != nil {
		return err
	}
	env.logger.Info("mirror: imported", slog.String("root", src.Root()), slog.Int("created", n))

	if !cmd.Bool("watch") {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return m.Watch(ctx)
}
