package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Publisher is the part of a message broker client the queue sender needs.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// QueueSender hands messages to the email worker through a broker.
// A message counts as sent once the broker has accepted it.
type QueueSender struct {
	Pub Publisher
}

func NewQueueSender(pub Publisher) *QueueSender {
	return &QueueSender{Pub: pub}
}

func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	return q.Pub.PublishJSON(ctx, JobFromMessage(msg))
}

// LogSender writes messages to the log instead of delivering them (local development).
type LogSender struct {
	Logger *logrus.Logger
}

func (l LogSender) Send(_ context.Context, msg Message) error {
	if l.Logger != nil {
		l.Logger.WithFields(logrus.Fields{"to": msg.To, "subject": msg.Subject}).Info(msg.Text)
	}
	return nil
}
