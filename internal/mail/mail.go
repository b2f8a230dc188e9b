package mail

import (
	"context"

	"github.com/rs/zerolog"

	"battlearena/internal/queue"
)

// Message is the payload of a mail task.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any) (string, error)
}

// StreamMailer hands messages to the worker through the task stream instead
// of talking to the mail server inside the request.
type StreamMailer struct {
	queue Enqueuer
	log   zerolog.Logger
}

func NewStreamMailer(queue Enqueuer, log zerolog.Logger) *StreamMailer {
	return &StreamMailer{queue: queue, log: log}
}

func (m *StreamMailer) Send(ctx context.Context, to string, subject string, body string) error {
	id, err := m.queue.Enqueue(ctx, queue.TaskMail, Message{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}
	m.log.Debug().Str("message_id", id).Str("subject", subject).Msg("mail enqueued")
	return nil
}
