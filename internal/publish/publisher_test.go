package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/logger"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestPublisher(topics Topics) (*Publisher, map[string]*fakeWriter) {
	writers := make(map[string]*fakeWriter)
	p := newPublisher(topics, func(topic string) MessageWriter {
		w := &fakeWriter{}
		writers[topic] = w
		return w
	}, logger.Nop())
	return p, writers
}

func TestPublisher_WhaleEvents(t *testing.T) {
	p, writers := newTestPublisher(Topics{Whale: "whales", Silence: "silences", Transition: "transitions"})
	ctx := context.Background()

	events := []domain.WhaleEvent{{
		Wallet:          "W1",
		Window:          domain.Window24h,
		EventType:       domain.EventWhaleCum24hBuy,
		EventTime:       1050,
		FlowRef:         "SigB",
		Amount:          55 * domain.LamportsPerSOL,
		SupportingFlows: 2,
	}}
	require.NoError(t, p.PublishWhaleEvents(ctx, events))

	w := writers["whales"]
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "W1", string(w.msgs[0].Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "WHALE_CUM_24H_BUY", decoded["event_type"])
	assert.Equal(t, float64(2), decoded["supporting_flows"])
	assert.Equal(t, "24h", decoded["window"])
}

func TestPublisher_SilenceAndTransition(t *testing.T) {
	p, writers := newTestPublisher(Topics{Whale: "whales", Silence: "silences", Transition: "transitions"})
	ctx := context.Background()

	require.NoError(t, p.PublishSilenceEvents(ctx, []domain.SilenceEvent{{
		Mint: "M", Wallet: "W1", Pattern: domain.PatternStoppedBeforePeak, EventTime: 10, Trigger: domain.TriggerStateTransition,
	}}))
	require.NoError(t, p.PublishTransition(ctx, domain.StateTransition{
		Mint: "M", EpisodeID: 3, From: domain.TokenQuiet, To: domain.TokenIgnition, Trigger: "new_episode", Severity: domain.SeverityWeak, Time: 10,
	}))

	assert.Equal(t, "M:W1", string(writers["silences"].msgs[0].Key))
	tr := writers["transitions"].msgs[0]
	assert.Equal(t, "M", string(tr.Key))
	assert.Equal(t, "3", string(tr.Headers[0].Value))
	assert.Contains(t, string(tr.Value), `"to":"TOKEN_IGNITION"`)
	assert.Contains(t, string(tr.Value), `"severity":"S1"`)
}

func TestPublisher_WalletSignals(t *testing.T) {
	p, writers := newTestPublisher(Topics{Signal: "signals"})
	ctx := context.Background()

	require.NoError(t, p.PublishWalletSignals(ctx, nil))
	require.NoError(t, p.PublishWalletSignals(ctx, []domain.WalletSignal{
		{
			Mint: "M", Wallet: "W1", EventTime: 1050, FlowRef: "s3", EpisodeID: 1,
			Signals: []string{domain.SignalCoordination},
			Details: domain.SignalDetails{Coordination: &domain.CoordinationSignal{
				WalletCount: 3, Direction: domain.CoordinationMixed, WindowSeconds: 60,
			}},
		},
		{
			Mint: "M", EventTime: 1050, FlowRef: "s3", EpisodeID: 1,
			Signals: []string{domain.SignalExhaustion},
			Details: domain.SignalDetails{Exhaustion: &domain.ExhaustionSignal{DisengagementPct: 0.6, SilentEarly: 3, TotalEarly: 5}},
		},
	}))

	msgs := writers["signals"].msgs
	require.Len(t, msgs, 2)
	assert.Equal(t, "M:W1", string(msgs[0].Key))
	assert.Equal(t, "M:", string(msgs[1].Key))

	var decoded struct {
		Wallet  string   `json:"wallet"`
		Signals []string `json:"signals"`
		Details struct {
			Coordination struct {
				Direction string `json:"direction"`
			} `json:"coordination"`
			Exhaustion *struct{} `json:"exhaustion"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Value, &decoded))
	assert.Equal(t, "W1", decoded.Wallet)
	assert.Equal(t, []string{"COORDINATION"}, decoded.Signals)
	assert.Equal(t, "mixed", decoded.Details.Coordination.Direction)
	assert.Nil(t, decoded.Details.Exhaustion)
	assert.NotContains(t, string(msgs[1].Value), `"wallet"`)
}

func TestPublisher_SkipsUnconfiguredTopicAndPropagatesErrors(t *testing.T) {
	p, writers := newTestPublisher(Topics{Whale: "whales"})
	ctx := context.Background()

	require.NoError(t, p.PublishTransition(ctx, domain.StateTransition{Mint: "M"}))
	assert.Len(t, writers, 1)

	writers["whales"].err = errors.New("broker down")
	err := p.PublishWhaleEvents(ctx, []domain.WhaleEvent{{Wallet: "W"}})
	assert.ErrorContains(t, err, "broker down")

	require.NoError(t, p.Close())
	assert.True(t, writers["whales"].closed)
}
