package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oksasatya/go-auth-service/config"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
	"github.com/oksasatya/go-auth-service/pkg/mailer"
)

// outcome tells the consumer loop what to do with a delivery.
type outcome int

const (
	ack outcome = iota
	drop
	retry
)

// process decodes, renders and sends one queued job.
// Malformed jobs are dropped; delivery failures are retried up to maxAttempts.
func process(ctx context.Context, sender mailer.Sender, body []byte, timeout time.Duration) (outcome, error) {
	var job mailer.EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return drop, err
	}
	msg, err := helpers.RenderJob(job)
	if err != nil {
		return drop, err
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sender.Send(c, msg); err != nil {
		if errors.Is(err, mailer.ErrMailgunNotConfigured) {
			return drop, err
		}
		return retry, err
	}
	return ack, nil
}

const (
	attemptsHeader = "x-attempts"
	maxAttempts    = 5
	baseBackoff    = 500 * time.Millisecond
	maxBackoff     = 8 * time.Second
)

// nextAttempt returns the attempt number a retried job would carry and
// whether it may run again. A delivery without the header is attempt 1.
func nextAttempt(h amqp.Table) (int, bool) {
	n := 1
	switch v := h[attemptsHeader].(type) {
	case int32:
		n = int(v)
	case int64:
		n = int(v)
	case int:
		n = v
	}
	if n < 1 {
		n = 1
	}
	return n + 1, n < maxAttempts
}

// backoff doubles from baseBackoff per failed attempt, capped at maxBackoff.
func backoff(failed int) time.Duration {
	if failed < 1 {
		failed = 1
	}
	d := baseBackoff
	for i := 1; i < failed && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// republish puts a copy of d back on queue with the attempt header set.
func republish(ctx context.Context, pub publisher, queue string, d amqp.Delivery, attempt int) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[attemptsHeader] = int32(attempt)
	return pub.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		Headers:      headers,
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         d.Body,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)

	if cfg.RabbitMQURL == "" || cfg.RabbitMQEmailQueue == "" {
		logger.Fatal("RabbitMQ not configured")
	}
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		logger.Fatal("Mailgun not configured")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatalf("amqp dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatalf("amqp channel: %v", err)
	}
	defer func() { _ = ch.Close() }()

	// Prefetch for fair dispatch across workers
	if err := ch.Qos(16, 0, false); err != nil {
		logger.Fatalf("qos: %v", err)
	}
	if _, err := ch.QueueDeclare(cfg.RabbitMQEmailQueue, true, false, false, false, nil); err != nil {
		logger.Fatalf("queue declare: %v", err)
	}
	msgs, err := ch.Consume(cfg.RabbitMQEmailQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.Fatalf("consume: %v", err)
	}

	mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
	mg.APIBase = cfg.MailgunAPIBase
	ctx, stopCtx := context.WithCancel(context.Background())
	defer stopCtx()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for d := range msgs {
			res, err := process(ctx, mg, d.Body, cfg.MailSendTimeout)
			entry := logger.WithField("delivery_tag", d.DeliveryTag)
			switch res {
			case ack:
				_ = d.Ack(false)
			case drop:
				entry.WithError(err).Warn("dropping email job")
				_ = d.Nack(false, false)
			case retry:
				next, ok := nextAttempt(d.Headers)
				if !ok {
					// dead-lettered when the queue has a DLX policy, discarded otherwise
					entry.WithError(err).WithField("attempts", next-1).Error("send failed; giving up")
					_ = d.Nack(false, false)
					continue
				}
				entry.WithError(err).WithField("attempt", next).Warn("send failed; retrying")
				if !sleepCtx(ctx, backoff(next-1)) {
					_ = d.Nack(false, true)
					continue
				}
				if err := republish(ctx, ch, cfg.RabbitMQEmailQueue, d, next); err != nil {
					entry.WithError(err).Error("republish failed; requeueing")
					_ = d.Nack(false, true)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	logger.WithField("queue", cfg.RabbitMQEmailQueue).Info("email worker listening")
	<-stop
	logger.Info("shutting down")
	stopCtx()
	_ = ch.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
