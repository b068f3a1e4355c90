package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), Event{
		Type:       PlayerPicked,
		SessionID:  42,
		UserID:     7,
		Payload:    map[string]any{"player_id": 11},
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, at, msg.Time)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "session.player_picked", decoded["type"])
	assert.Equal(t, float64(42), decoded["session_id"])
	assert.Equal(t, float64(7), decoded["user_id"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_StampsMissingTime(t *testing.T) {
	w := &fakeWriter{}
	before := time.Now().UTC()

	require.NoError(t, NewKafkaPublisher(w).Publish(context.Background(), Event{Type: SessionSettled, SessionID: 1}))
	require.Len(t, w.msgs, 1)
	assert.False(t, w.msgs[0].Time.Before(before))
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	err := NewKafkaPublisher(w).Publish(context.Background(), Event{Type: SessionCreated, SessionID: 3})
	assert.ErrorContains(t, err, "broker unavailable")
}

func TestNewWriter(t *testing.T) {
	w := NewWriter("k1:9092,k2:9092", "cricketduel.sessions")
	assert.Equal(t, "cricketduel.sessions", w.Topic)
	assert.NotNil(t, w.Addr)
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
