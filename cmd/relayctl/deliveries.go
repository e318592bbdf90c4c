package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/relaydeck/relaydeck/core/console/bus"
)

func runDeliveriesCmd(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	switch args[0] {
	case "list":
		runDeliveriesList(args[1:])
	case "tail":
		runDeliveriesTail(args[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func runDeliveriesList(args []string) {
	fs := newFlagSet("deliveries list")
	limit := fs.Int("limit", 50, "max deliveries to fetch")
	fs.ParseArgs(args)
	client := newClient(*fs.gateway, *fs.apiKey)
	deliveries, err := client.ListDeliveries(context.Background(), *limit)
	check(err)
	printJSON(deliveries)
}

// runDeliveriesTail streams delivery events from the console's websocket
// until interrupted.
func runDeliveriesTail(args []string) {
	fs := newFlagSet("deliveries tail")
	fs.ParseArgs(args)

	url := streamURL(*fs.gateway)
	header := http.Header{}
	if *fs.apiKey != "" {
		header.Set("X-API-Key", *fs.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	check(err)
	defer conn.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			fail(err.Error())
		}
		ev, err := bus.DecodeEvent(data)
		if err != nil {
			continue
		}
		fmt.Printf("%s route=%d scope=%s status=%s attempts=%d\n",
			ev.Time.Format("15:04:05"), ev.RouteID, ev.Scope, ev.Status, ev.Attempts)
	}
}

// streamURL maps the console base url onto its websocket endpoint.
func streamURL(gateway string) string {
	base := strings.TrimRight(gateway, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/v1/stream"
}
