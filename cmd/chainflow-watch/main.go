// chainflow-watch tails a run's lifecycle events from a chainflowd status
// feed over socket.io and prints them until the run reaches a terminal state.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

func main() {
	if err := watch(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func watch(args []string) error {
	fs := flag.NewFlagSet("chainflow-watch", flag.ContinueOnError)
	feedURL := fs.String("feed", "http://127.0.0.1:8081", "status feed base URL")
	timeout := fs.Duration("timeout", 15*time.Minute, "give up after this long")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: chainflow-watch [flags] <run-id>")
	}
	runID := fs.Arg(0)

	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(*feedURL, opts)
	io := manager.Socket("/", opts)
	defer io.Disconnect()

	done := make(chan error, 1)

	io.On(types.EventName("connect"), func(...any) {
		io.Emit("subscribe", runID)
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		done <- fmt.Errorf("feed connection failed: %v", errs[0])
	})
	io.On(types.EventName("event"), func(args ...any) {
		if len(args) == 0 {
			return
		}
		ev := decodeEvent(args[0])
		printEvent(ev)
		if strings.HasPrefix(ev.Type, "run.") && ev.Type != "run.started" {
			done <- nil
		}
	})

	io.Connect()

	select {
	case err := <-done:
		return err
	case <-time.After(*timeout):
		return fmt.Errorf("timed out waiting for run %s to finish", runID)
	}
}

// feedEvent mirrors the wire shape of the engine's events.Event.
type feedEvent struct {
	Seq    uint64 `json:"seq"`
	RunID  string `json:"runId"`
	Type   string `json:"type"`
	NodeID string `json:"nodeId"`
	Error  string `json:"error"`
}

// decodeEvent tolerates the map payload socket.io hands callbacks.
func decodeEvent(raw any) feedEvent {
	var ev feedEvent
	buf, err := json.Marshal(raw)
	if err != nil {
		return ev
	}
	_ = json.Unmarshal(buf, &ev)
	return ev
}

func printEvent(ev feedEvent) {
	switch {
	case ev.Error != "":
		fmt.Printf("[%04d] %-14s %s (%s)\n", ev.Seq, ev.Type, ev.NodeID, ev.Error)
	case ev.NodeID != "":
		fmt.Printf("[%04d] %-14s %s\n", ev.Seq, ev.Type, ev.NodeID)
	default:
		fmt.Printf("[%04d] %-14s\n", ev.Seq, ev.Type)
	}
}
