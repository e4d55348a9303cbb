// Package publish fans detector output out to Kafka topics.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/logger"
)

// Topics names the destination topic per event kind.
type Topics struct {
	Whale      string
	Silence    string
	Signal     string
	Transition string
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes JSON encoded events, one writer per topic.
type Publisher struct {
	topics  Topics
	writers map[string]MessageWriter
	log     *logger.Logger
}

// NewPublisher creates a publisher with kafka writers for every configured topic.
func NewPublisher(brokers []string, topics Topics, log *logger.Logger) *Publisher {
	newWriter := func(topic string) MessageWriter {
		return &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		}
	}
	return newPublisher(topics, newWriter, log)
}

func newPublisher(topics Topics, newWriter func(topic string) MessageWriter, log *logger.Logger) *Publisher {
	p := &Publisher{
		topics:  topics,
		writers: make(map[string]MessageWriter),
		log:     log.Named("publisher"),
	}
	for _, topic := range []string{topics.Whale, topics.Silence, topics.Signal, topics.Transition} {
		if topic == "" {
			continue
		}
		if _, ok := p.writers[topic]; !ok {
			p.writers[topic] = newWriter(topic)
		}
	}
	return p
}

// whaleMessage is the wire form of a whale event.
type whaleMessage struct {
	Wallet          string `json:"wallet"`
	Mint            string `json:"mint,omitempty"`
	Window          string `json:"window"`
	EventType       string `json:"event_type"`
	EventTime       int64  `json:"event_time"`
	FlowRef         string `json:"flow_ref"`
	Amount          int64  `json:"amount_lamports"`
	SupportingFlows int    `json:"supporting_flows"`
}

type silenceMessage struct {
	Mint      string `json:"mint"`
	Wallet    string `json:"wallet"`
	Pattern   string `json:"pattern"`
	EventTime int64  `json:"event_time"`
	Trigger   string `json:"trigger"`
}

type signalMessage struct {
	Mint      string               `json:"mint"`
	Wallet    string               `json:"wallet,omitempty"`
	EventTime int64                `json:"event_time"`
	FlowRef   string               `json:"flow_ref"`
	EpisodeID int                  `json:"episode_id"`
	Signals   []string             `json:"signals"`
	Details   domain.SignalDetails `json:"details"`
}

type transitionMessage struct {
	Mint      string `json:"mint"`
	EpisodeID int    `json:"episode_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Trigger   string `json:"trigger"`
	Severity  string `json:"severity,omitempty"`
	Time      int64  `json:"time"`
}

// PublishWhaleEvents writes events keyed by wallet so one wallet stays on one partition.
func (p *Publisher) PublishWhaleEvents(ctx context.Context, events []domain.WhaleEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(whaleMessage{
			Wallet:          e.Wallet,
			Mint:            e.Mint,
			Window:          string(e.Window),
			EventType:       e.EventType,
			EventTime:       e.EventTime,
			FlowRef:         e.FlowRef,
			Amount:          e.Amount,
			SupportingFlows: e.SupportingFlows,
		})
		if err != nil {
			return fmt.Errorf("marshal whale event: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(e.Wallet), Value: data})
	}
	return p.write(ctx, p.topics.Whale, msgs)
}

// PublishSilenceEvents writes silence events keyed by mint and wallet.
func (p *Publisher) PublishSilenceEvents(ctx context.Context, events []domain.SilenceEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(silenceMessage(e))
		if err != nil {
			return fmt.Errorf("marshal silence event: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(e.Mint + ":" + e.Wallet), Value: data})
	}
	return p.write(ctx, p.topics.Silence, msgs)
}

// PublishWalletSignals writes wallet signals keyed by mint and wallet.
func (p *Publisher) PublishWalletSignals(ctx context.Context, signals []domain.WalletSignal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(signals))
	for _, s := range signals {
		data, err := json.Marshal(signalMessage(s))
		if err != nil {
			return fmt.Errorf("marshal wallet signal: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(s.Mint + ":" + s.Wallet), Value: data})
	}
	return p.write(ctx, p.topics.Signal, msgs)
}

// PublishTransition writes one lifecycle transition keyed by mint.
func (p *Publisher) PublishTransition(ctx context.Context, t domain.StateTransition) error {
	data, err := json.Marshal(transitionMessage{
		Mint:      t.Mint,
		EpisodeID: t.EpisodeID,
		From:      string(t.From),
		To:        string(t.To),
		Trigger:   t.Trigger,
		Severity:  t.Severity,
		Time:      t.Time,
	})
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(t.Mint),
		Value:   data,
		Headers: []kafka.Header{{Key: "episode", Value: []byte(strconv.Itoa(t.EpisodeID))}},
	}
	return p.write(ctx, p.topics.Transition, []kafka.Message{msg})
}

func (p *Publisher) write(ctx context.Context, topic string, msgs []kafka.Message) error {
	w, ok := p.writers[topic]
	if !ok {
		return nil
	}
	if err := w.WriteMessages(ctx, msgs...); err != nil {
		p.log.Errorw("publish failed", "topic", topic, "messages", len(msgs), "error", err)
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.log.Debugw("published", "topic", topic, "messages", len(msgs))
	return nil
}

// Close closes all writers.
func (p *Publisher) Close() error {
	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			p.log.Errorw("close writer failed", "topic", topic, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
