package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RogueTeam/remit/events"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

type writer struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) (err error) {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *writer) Close() (err error) {
	w.closed = true
	return nil
}

func Test_Kafka(t *testing.T) {
	t.Run("Publish", func(t *testing.T) {
		assertions := assert.New(t)

		w := &writer{}
		publisher := events.NewKafka(events.KafkaConfig{Writer: w})

		now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		event, err := events.New(events.TypeTransferStatusChanged, "tx-1", map[string]string{"status": "COMPLETED"}, now)
		if !assertions.Nil(err, "failed to build event") {
			return
		}

		err = publisher.Publish(context.TODO(), event)
		assertions.Nil(err, "failed to publish")
		if !assertions.Len(w.messages, 1) {
			return
		}

		message := w.messages[0]
		assertions.Equal("tx-1", string(message.Key))
		assertions.Equal(now, message.Time)
		assertions.Equal(kafka.Header{Key: "type", Value: []byte(events.TypeTransferStatusChanged)}, message.Headers[0])

		var decoded events.Event
		assertions.Nil(decoded.FromBytes(message.Value), "failed to decode")
		assertions.Equal(event.Id, decoded.Id)
		assertions.JSONEq(`{"status":"COMPLETED"}`, string(decoded.Payload))

		assertions.Nil(publisher.Close())
		assertions.True(w.closed)
	})
	t.Run("Empty", func(t *testing.T) {
		assertions := assert.New(t)

		w := &writer{err: errors.New("unreachable")}
		publisher := events.NewKafka(events.KafkaConfig{Writer: w})
		assertions.Nil(publisher.Publish(context.TODO()))
	})
	t.Run("Failure", func(t *testing.T) {
		assertions := assert.New(t)

		cause := errors.New("leader not available")
		publisher := events.NewKafka(events.KafkaConfig{Writer: &writer{err: cause}})

		event, _ := events.New(events.TypeTransferCreated, "tx-2", nil, time.Now())
		assertions.ErrorIs(publisher.Publish(context.TODO(), event), cause)
	})
}

func Test_Recorder(t *testing.T) {
	assertions := assert.New(t)

	var recorder events.Recorder
	created, _ := events.New(events.TypeTransferCreated, "a", nil, time.Now())
	changed, _ := events.New(events.TypeTransferStatusChanged, "a", nil, time.Now())

	assertions.Nil(recorder.Publish(context.TODO(), created, changed))
	assertions.Len(recorder.Events(""), 2)
	assertions.Len(recorder.Events(events.TypeTransferCreated), 1)

	recorder.Err = errors.New("down")
	assertions.NotNil(recorder.Publish(context.TODO(), created))
	assertions.Len(recorder.Events(""), 2)
}
