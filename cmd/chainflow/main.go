// chainflow runs a workflow manifest locally against simulated chains and
// streams its lifecycle events to stdout. The exit code reflects the run's
// terminal status.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/vk/chainflow/internal/chain"
	"github.com/vk/chainflow/internal/engine"
	"github.com/vk/chainflow/internal/events"
	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/htlc"
	"github.com/vk/chainflow/internal/manifest"
	"github.com/vk/chainflow/internal/run"
	"github.com/vk/chainflow/internal/store"
	"github.com/vk/chainflow/modules"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	if err := runCLI(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCLI(args []string) error {
	fs := flag.NewFlagSet("chainflow", flag.ContinueOnError)
	networks := fs.String("networks", "ethereum,polygon", "comma-separated simulated networks")
	concurrency := fs.Int("concurrency", 4, "maximum nodes executing at once")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: chainflow [flags] <manifest.hcl>")
	}

	g, err := manifest.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	chains := make(chain.Set)
	for _, id := range strings.Split(*networks, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			chains[id] = chain.NewSimChain(id)
		}
	}

	registry := executor.NewRegistry()
	registry.Install(modules.All(chains, htlc.NewStore(), store.NopArchiver{})...)

	eng := engine.New(engine.Config{
		Registry: registry,
		Store:    store.NewMemoryStore(),
	})

	ch, cancel := eng.Bus().Subscribe()
	defer cancel()

	ctx := context.Background()
	runID, err := eng.Submit(ctx, g, engine.Options{
		MaxConcurrency: *concurrency,
		Environment:    "test",
	})
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			if ev.RunID != runID {
				continue
			}
			printEvent(ev)
			if strings.HasPrefix(string(ev.Type), "run.") && ev.Type != events.RunStarted {
				return
			}
		}
	}()

	eng.Wait(runID)
	<-done

	snap, err := eng.Snapshot(ctx, runID)
	if err != nil {
		return err
	}
	if snap.Run.Status != run.StatusCompleted {
		return fmt.Errorf("run %s finished %s: %s", runID, snap.Run.Status, snap.Run.Error)
	}
	fmt.Printf("✅ run %s completed\n", runID)
	return nil
}

func printEvent(ev events.Event) {
	switch {
	case ev.NodeID != "":
		if ev.Error != "" {
			fmt.Printf("[%04d] %-14s %s (%s)\n", ev.Seq, ev.Type, ev.NodeID, ev.Error)
			return
		}
		fmt.Printf("[%04d] %-14s %s\n", ev.Seq, ev.Type, ev.NodeID)
	default:
		fmt.Printf("[%04d] %-14s\n", ev.Seq, ev.Type)
	}
}
