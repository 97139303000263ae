package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-auth-service/pkg/mailer"
)

type stubSender struct {
	got []mailer.Message
	err error
}

func (s *stubSender) Send(_ context.Context, msg mailer.Message) error {
	s.got = append(s.got, msg)
	return s.err
}

func body(t *testing.T, job mailer.EmailJob) []byte {
	t.Helper()
	b, err := json.Marshal(job)
	require.NoError(t, err)
	return b
}

func TestProcess(t *testing.T) {
	ctx := context.Background()
	job := mailer.EmailJob{To: "ann@example.com", Subject: "Password reset token", Text: "hello"}

	t.Run("sends rendered message", func(t *testing.T) {
		s := &stubSender{}
		res, err := process(ctx, s, body(t, job), time.Second)
		require.NoError(t, err)
		assert.Equal(t, ack, res)
		require.Len(t, s.got, 1)
		assert.Equal(t, "ann@example.com", s.got[0].To)
	})

	t.Run("malformed json is dropped", func(t *testing.T) {
		res, err := process(ctx, &stubSender{}, []byte("{"), time.Second)
		assert.Error(t, err)
		assert.Equal(t, drop, res)
	})

	t.Run("empty job is dropped", func(t *testing.T) {
		res, err := process(ctx, &stubSender{}, body(t, mailer.EmailJob{To: "x@example.com"}), time.Second)
		assert.Error(t, err)
		assert.Equal(t, drop, res)
	})

	t.Run("send failure is retried", func(t *testing.T) {
		res, err := process(ctx, &stubSender{err: errors.New("503")}, body(t, job), time.Second)
		assert.Error(t, err)
		assert.Equal(t, retry, res)
	})

	t.Run("misconfiguration is dropped", func(t *testing.T) {
		res, _ := process(ctx, &stubSender{err: mailer.ErrMailgunNotConfigured}, body(t, job), time.Second)
		assert.Equal(t, drop, res)
	})
}

func TestNextAttempt(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		next    int
		ok      bool
	}{
		{"fresh job", nil, 2, true},
		{"int32 from the broker", amqp.Table{attemptsHeader: int32(3)}, 4, true},
		{"int64", amqp.Table{attemptsHeader: int64(4)}, 5, true},
		{"last attempt used", amqp.Table{attemptsHeader: int32(maxAttempts)}, maxAttempts + 1, false},
		{"garbage counts as first", amqp.Table{attemptsHeader: "x"}, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := nextAttempt(tt.headers)
			assert.Equal(t, tt.next, next)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestNextAttempt_BoundsRetries(t *testing.T) {
	var h amqp.Table
	runs := 1
	for {
		next, ok := nextAttempt(h)
		if !ok {
			break
		}
		runs++
		h = amqp.Table{attemptsHeader: int32(next)}
		require.LessOrEqual(t, runs, maxAttempts)
	}
	assert.Equal(t, maxAttempts, runs)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, baseBackoff, backoff(0))
	assert.Equal(t, baseBackoff, backoff(1))
	assert.Equal(t, 2*baseBackoff, backoff(2))
	assert.Equal(t, maxBackoff, backoff(100))
}

type recordPublisher struct {
	queue string
	msg   amqp.Publishing
	err   error
}

func (p *recordPublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	p.queue = key
	p.msg = msg
	return p.err
}

func TestRepublish(t *testing.T) {
	d := amqp.Delivery{
		Headers:     amqp.Table{"trace": "abc", attemptsHeader: int32(1)},
		ContentType: "application/json",
		Body:        []byte(`{"to":"ann@example.com"}`),
	}
	pub := &recordPublisher{}
	require.NoError(t, republish(context.Background(), pub, "emails", d, 2))

	assert.Equal(t, "emails", pub.queue)
	assert.Equal(t, d.Body, pub.msg.Body)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, int32(2), pub.msg.Headers[attemptsHeader])
	assert.Equal(t, "abc", pub.msg.Headers["trace"])
	assert.Equal(t, int32(1), d.Headers[attemptsHeader], "the original delivery is untouched")
}
