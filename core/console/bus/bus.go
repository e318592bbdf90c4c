// Package bus carries delivery events between the console's ingest path and
// its websocket stream over NATS.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/relaydeck/relaydeck/core/infra/logging"
)

// SubjectDeliveries is the subject delivery events are published on.
const SubjectDeliveries = "relaydeck.deliveries"

var (
	errNilBus   = errors.New("delivery bus not initialized")
	errNilEvent = errors.New("nil delivery event")
)

// DeliveryEvent is the JSON payload published for every delivery state change.
type DeliveryEvent struct {
	ID       string    `json:"id"`
	RouteID  int64     `json:"route_id"`
	Scope    string    `json:"scope"`
	Event    string    `json:"event,omitempty"`
	Status   string    `json:"status"`
	Attempts int       `json:"attempts"`
	Time     time.Time `json:"time"`
}

// EncodeEvent marshals a delivery event for the wire.
func EncodeEvent(ev *DeliveryEvent) ([]byte, error) {
	if ev == nil {
		return nil, errNilEvent
	}
	return json.Marshal(ev)
}

// DecodeEvent unmarshals a wire payload.
func DecodeEvent(data []byte) (*DeliveryEvent, error) {
	var ev DeliveryEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode delivery event: %w", err)
	}
	return &ev, nil
}

// Bus is a thin wrapper over a NATS connection that speaks JSON delivery
// events.
type Bus struct {
	nc *nats.Conn
}

// Connect dials NATS at the provided URL.
func Connect(url string) (*Bus, error) {
	opts := []nats.Option{
		nats.Name("relaydeck-console"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.Warn("bus", "disconnected from NATS", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("bus", "reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.Info("bus", "connection closed")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Bus{nc: nc}, nil
}

// Close shuts down the underlying NATS connection.
func (b *Bus) Close() {
	if b != nil && b.nc != nil {
		b.nc.Close()
	}
}

// PublishDelivery sends one delivery event.
func (b *Bus) PublishDelivery(ev *DeliveryEvent) error {
	if b == nil || b.nc == nil {
		return errNilBus
	}
	data, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return b.nc.Publish(SubjectDeliveries, data)
}

// SubscribeDeliveries invokes fn for every delivery event. Malformed
// payloads are logged and dropped. The returned function unsubscribes.
func (b *Bus) SubscribeDeliveries(fn func(*DeliveryEvent)) (func(), error) {
	if b == nil || b.nc == nil {
		return nil, errNilBus
	}
	sub, err := b.nc.Subscribe(SubjectDeliveries, func(msg *nats.Msg) {
		ev, err := DecodeEvent(msg.Data)
		if err != nil {
			logging.Error("bus", "bad delivery event", "error", err)
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", SubjectDeliveries, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}
