// Package socketfeed serves the live status feed over socket.io. Observers
// connect, emit "subscribe" with a run id, and receive that run's lifecycle
// events in order as "event" messages.
package socketfeed

import (
	"log/slog"
	"net/http"

	"github.com/zishang520/socket.io/v2/socket"

	"github.com/vk/chainflow/internal/events"
)

// Feed bridges the engine's event bus onto a socket.io server.
type Feed struct {
	io     *socket.Server
	bus    *events.Bus
	logger *slog.Logger
	stop   func()
}

// New creates the feed and starts pumping bus events to subscribers.
func New(bus *events.Bus, logger *slog.Logger) *Feed {
	io := socket.NewServer(nil, nil)
	f := &Feed{io: io, bus: bus, logger: logger}

	io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		logger.Debug("Feed client connected.", "sid", client.Id())

		client.On("subscribe", func(args ...any) {
			if len(args) == 0 {
				return
			}
			runID, ok := args[0].(string)
			if !ok || runID == "" {
				return
			}
			logger.Debug("Feed client subscribed.", "sid", client.Id(), "runID", runID)
			client.Join(socket.Room(runID))
		})

		client.On("disconnect", func(...any) {
			logger.Debug("Feed client disconnected.", "sid", client.Id())
		})
	})

	ch, cancel := bus.Subscribe()
	f.stop = cancel
	go f.pump(ch)
	return f
}

// pump forwards every bus event to the room named after its run id.
func (f *Feed) pump(ch <-chan events.Event) {
	for ev := range ch {
		f.io.To(socket.Room(ev.RunID)).Emit("event", ev)
	}
}

// Handler returns the HTTP handler to mount at /socket.io/.
func (f *Feed) Handler() http.Handler {
	return f.io.ServeHandler(nil)
}

// Close detaches the feed from the bus and shuts the socket server down.
func (f *Feed) Close() {
	f.stop()
	f.io.Close(nil)
}
