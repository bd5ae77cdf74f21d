package notify

import (
	"context"
	"fmt"

	"github.com/RogueTeam/remit/events"
	"github.com/RogueTeam/remit/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type (
	Message struct {
		JobId         uuid.UUID `json:"jobId"`
		TransactionId uuid.UUID `json:"transactionId"`
		Channel       Channel   `json:"channel"`
		Address       string    `json:"address"`
		Subject       string    `json:"subject,omitempty"`
		Body          string    `json:"body"`
	}
	// Sender delivers a rendered message over one channel
	Sender interface {
		Send(ctx context.Context, msg Message) (err error)
	}
)

func (j *Job) message() (msg Message) {
	return Message{
		JobId:         j.Id,
		TransactionId: j.TransactionId,
		Channel:       j.Channel,
		Address:       j.Address,
		Subject:       j.Subject,
		Body:          j.Body,
	}
}

// LogSender writes messages to the log. Used in development
type LogSender struct {
	Logger logrus.FieldLogger
}

var _ Sender = (*LogSender)(nil)

func (s *LogSender) Send(ctx context.Context, msg Message) (err error) {
	s.Logger.WithFields(logrus.Fields{
		"job_id":         msg.JobId,
		"transaction_id": msg.TransactionId,
		"channel":        msg.Channel,
		"address":        msg.Address,
	}).Infof("%s: %s", msg.Subject, msg.Body)
	return nil
}

// PublisherSender hands messages to the delivery workers behind a publisher
type PublisherSender struct {
	Publisher events.Publisher
	Clock     utils.Clock
}

var _ Sender = (*PublisherSender)(nil)

func (s *PublisherSender) Send(ctx context.Context, msg Message) (err error) {
	event, err := events.New(events.TypeNotification, msg.TransactionId.String(), msg, s.Clock.Now())
	if err != nil {
		return err
	}
	err = s.Publisher.Publish(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to publish %s message: %w", msg.Channel, err)
	}
	return nil
}
