package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cmdlink/cmdlink/internal/bus"
	"github.com/cmdlink/cmdlink/internal/capture"
	"github.com/cmdlink/cmdlink/internal/config"
	"github.com/cmdlink/cmdlink/internal/dependency"
	"github.com/cmdlink/cmdlink/internal/migrate"
	"github.com/cmdlink/cmdlink/internal/scheduler"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cmdlink bridge",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Config file path (default ~/.cmdlink/config.json)")
}

func runServe(_ *cobra.Command, _ []string) error {
	provider, err := config.NewProvider(serveConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c, err := dependency.New(provider)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	// One-shot legacy import before anything reads the binding table.
	if rep, err := migrate.Run(provider, c.Store(), config.LegacyMappingsPath()); err != nil {
		return fmt.Errorf("legacy migration: %w", err)
	} else if !rep.Skipped {
		fmt.Printf("Migrated %d legacy binding(s), %d failure(s)\n", rep.Migrated, len(rep.Failures))
	}

	c.Admin().Register(c.Processor())
	published := c.Registrar().Sync()
	fmt.Printf("Published %d function(s)\n", published)

	// Keep the function set current with config edits.
	provider.OnChange(func() {
		if provider.Snapshot().Basic.AutoRefreshOnChange {
			c.Registrar().Sync()
		}
	})

	// Scheduled tasks run through the same capture engine as function calls.
	c.Scheduler().SetOnRun(func(ctx context.Context, task scheduler.Task) error {
		b, err := c.Store().Get(task.Command)
		if err != nil {
			return err
		}
		_, err = c.Engine().Execute(ctx, capture.Request{
			Binding: b,
			Args:    task.Args,
			Origin:  bus.Origin{Channel: task.Channel, ChatID: task.ChatID, SenderID: "scheduler"},
		})
		return err
	})

	if gw := provider.Snapshot().Gateway; gw.Enabled {
		c.Channels().AddChannel(c.Gateway())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return provider.Watch(gctx) })
	g.Go(func() error { return c.Processor().Run(gctx) })
	g.Go(func() error { return c.Scheduler().Start(gctx) })
	g.Go(func() error { return c.Channels().StartAll(gctx) })
	if provider.Snapshot().Gateway.Enabled {
		g.Go(func() error { return c.Gateway().Start(gctx) })
	}

	fmt.Println("cmdlink running. Press Ctrl+C to stop.")

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
