package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ragbench/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Watch a directory and auto-upload new PDFs",
	Long: `Watches the given directory and uploads every PDF that appears in it.
Files already present are uploaded once at startup. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	debounce := time.Duration(a.cfg.WatchDebounceSeconds) * time.Second
	w := watcher.New(args[0], debounce, func(ctx context.Context, paths []string) error {
		_, err := a.uploadFiles(ctx, paths, false)
		return err
	}, a.logger.Named("watcher"))

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", args[0])

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(ctx)
	})
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
