package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/deevus/clinic-tui/source"
	"github.com/segmentio/kafka-go"
)

// Config holds the Kafka connection settings for a Feed.
type Config struct {
	Brokers []string

	// TopicPrefix is prepended to the resource name to form the topic,
	// following Debezium's server.schema.table naming.
	TopicPrefix string
}

// MessageReader is the part of *kafka.Reader a Feed uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Feed subscribes to Debezium CDC topics, one reader per subscription.
type Feed struct {
	cfg       Config
	newReader func(topic string) (MessageReader, error)

	wg sync.WaitGroup
}

// NewFeed creates a Feed reading from cfg.Brokers.
func NewFeed(cfg Config) (*Feed, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka feed needs at least one broker")
	}
	f := &Feed{cfg: cfg}
	f.newReader = f.openReader
	return f, nil
}

func (f *Feed) openReader(topic string) (MessageReader, error) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  f.cfg.Brokers,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	// Only changes made from now on matter; the initial fetch covers the rest.
	if err := r.SetOffset(kafka.LastOffset); err != nil {
		r.Close()
		return nil, fmt.Errorf("seeking %s: %w", topic, err)
	}
	return r, nil
}

// Topic returns the topic a resource's changes are read from.
func (f *Feed) Topic(resource string) string {
	return f.cfg.TopicPrefix + resource
}

// Subscribe starts reading the resource's topic. onEvent is called from
// the subscription's reader goroutine in offset order.
func (f *Feed) Subscribe(ctx context.Context, resource string, filter source.EventFilter, onEvent func(source.ChangeEvent)) (*source.Subscription, error) {
	topic := f.Topic(resource)
	r, err := f.newReader(topic)
	if err != nil {
		return nil, err
	}

	readCtx, cancel := context.WithCancel(ctx)
	sub := source.NewSubscription(resource, func() {
		cancel()
		if err := r.Close(); err != nil {
			log.Printf("kafka: closing reader for %s: %v", topic, err)
		}
	})

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.consume(readCtx, r, sub, topic, resource, filter, onEvent)
	}()
	return sub, nil
}

func (f *Feed) consume(ctx context.Context, r MessageReader, sub *source.Subscription, topic, resource string, filter source.EventFilter, onEvent func(source.ChangeEvent)) {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				log.Printf("kafka: reading %s: %v", topic, err)
			}
			return
		}
		ev, skip, err := decodeMessage(resource, msg.Value)
		if err != nil {
			log.Printf("kafka: %v", err)
			continue
		}
		if skip || !filter.Matches(ev) {
			continue
		}
		select {
		case <-sub.Done():
			return
		default:
		}
		onEvent(ev)
	}
}

// Unsubscribe stops the subscription's reader.
func (f *Feed) Unsubscribe(sub *source.Subscription) {
	if sub != nil {
		sub.Close()
	}
}

// Wait blocks until every reader goroutine has exited.
func (f *Feed) Wait() {
	f.wg.Wait()
}
