// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/shopsignal/internal/config"
	"github.com/tomtom215/shopsignal/internal/metrics"
)

// Transports.
const (
	TransportInProcess = "inprocess"
	TransportNATS      = "nats"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("event bus is closed")

// Bus publishes and delivers ModelPromoted events on one topic.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	transport  string
	logger     watermill.LoggerAdapter
	server     *EmbeddedServer

	mu     sync.RWMutex
	closed bool
}

// NewInProcessBus delivers events between goroutines of this process
// only.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewInProcessBus(topic string, logger zerolog.Logger) *Bus {
	wl := NewLoggerAdapter(logger)
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, wl)
	return &Bus{publisher: ch, subscriber: ch, topic: topic, transport: TransportInProcess, logger: wl}
}

// NewNATSBus connects to the NATS server at url. Every subscriber gets
// every event; there is no queue group, since each serving replica must
// reload on its own.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewNATSBus(url, topic string, logger zerolog.Logger) (*Bus, error) {
	wl := NewLoggerAdapter(logger)
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				wl.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			wl.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
	noJetStream := wmNats.JetStreamConfig{Disabled: true}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   noJetStream,
	}, wl)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		CloseTimeout:     5 * time.Second,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        noJetStream,
	}, wl)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	return &Bus{publisher: pub, subscriber: sub, topic: topic, transport: TransportNATS, logger: wl}, nil
}

// Open builds the bus cfg asks for: an embedded NATS server, an external
// NATS server, or in-process delivery when neither is configured.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(cfg *config.EventsConfig, logger zerolog.Logger) (*Bus, error) {
	switch {
	case cfg.EmbeddedNATS:
		srv, err := NewEmbeddedServer(cfg.EmbeddedHost, cfg.EmbeddedPort)
		if err != nil {
			return nil, err
		}
		bus, err := NewNATSBus(srv.ClientURL(), cfg.Topic, logger)
		if err != nil {
			srv.Shutdown()
			return nil, err
		}
		bus.server = srv
		return bus, nil
	case cfg.NATSURL != "":
		return NewNATSBus(cfg.NATSURL, cfg.Topic, logger)
	default:
		return NewInProcessBus(cfg.Topic, logger), nil
	}
}

// Topic returns the topic events travel on.
func (b *Bus) Topic() string { return b.topic }

// Transport reports TransportInProcess or TransportNATS.
func (b *Bus) Transport() string { return b.transport }

// PublishModelPromoted sends ev to every subscriber.
func (b *Bus) PublishModelPromoted(ctx context.Context, ev *ModelPromoted) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	payload, err := encode(ev)
	if err != nil {
		return err
	}
	msg := message.NewMessage(ev.EventID, payload)
	msg.Metadata.Set("model", ev.Name)
	msg.Metadata.Set("stage", ev.Stage)
	msg.SetContext(ctx)

	err = b.publisher.Publish(b.topic, msg)
	metrics.RecordEventPublished(b.topic, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", b.topic, err)
	}
	return nil
}

// Subscribe starts delivering events to the returned channel. Only events
// published after Subscribe returns are delivered. The channel closes when
// ctx is done or the bus closes. Malformed messages are acknowledged and
// dropped.
func (b *Bus) Subscribe(ctx context.Context) (<-chan ModelPromoted, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}

	msgs, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", b.topic, err)
	}

	out := make(chan ModelPromoted)
	go func() {
		defer close(out)
		for msg := range msgs {
			ev, err := decode(msg.Payload)
			metrics.RecordEventConsumed(b.topic, err)
			if err != nil {
				b.logger.Error("Dropping malformed event", err, watermill.LogFields{"message_uuid": msg.UUID})
				msg.Ack()
				continue
			}
			select {
			case out <- ev:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

// Close stops the publisher, the subscriber and any embedded server.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	// gochannel uses one value for both sides.
	if b.transport != TransportInProcess {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	if b.server != nil {
		b.server.Shutdown()
	}
	return errors.Join(errs...)
}
