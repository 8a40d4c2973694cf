package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charleschow/market-matcher/internal/events"
	"github.com/charleschow/market-matcher/internal/fanout"
	"github.com/charleschow/market-matcher/internal/telemetry"
)

// inspect_ws tails a running matcher's fanout stream and prints each event.
func main() {
	addr := flag.String("addr", "localhost:8080", "matcher host:port")
	sportFlag := flag.String("sport", "", "only events for this sport (default: all)")
	typeFlag := flag.String("type", "", "only this event type, e.g. index_rebuilt")
	pretty := flag.Bool("pretty", false, "pretty-print payloads")
	flag.Parse()

	telemetry.Init(telemetry.ParseLogLevel("warn"))

	var sport events.Sport
	if *sportFlag != "" {
		sp, err := events.ParseSport(*sportFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		sport = sp
	}

	types := []events.EventType{
		events.EventIndexRebuilt,
		events.EventIndexRebuildFailed,
		events.EventIndexInvalidated,
		events.EventAliasesReloaded,
		events.EventMatchResolved,
	}

	bus := events.NewBus()
	for _, t := range types {
		if *typeFlag != "" && string(t) != *typeFlag {
			continue
		}
		bus.Subscribe(t, func(e events.Event) error {
			payload, err := json.Marshal(e.Payload)
			if err != nil {
				return err
			}
			if *pretty {
				var buf bytes.Buffer
				if err := json.Indent(&buf, payload, "", "  "); err == nil {
					payload = buf.Bytes()
				}
			}
			fmt.Printf("%s  %-22s %-6s %s\n", e.Timestamp.Format("15:04:05.000"), e.Type, e.Sport, payload)
			return nil
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := fanout.NewClient(*addr, sport, bus)
	fmt.Fprintf(os.Stderr, "tailing %s\n", client.URL())
	client.ConnectWithRetry(ctx)
}
