package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"battlearena/internal/config"
	"battlearena/internal/queue"
)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, taskType string, payload any) (string, error) {
	args := m.Called(ctx, taskType, payload)
	return args.String(0), args.Error(1)
}

func TestStreamMailerEnqueuesMailTask(t *testing.T) {
	q := &mockEnqueuer{}
	q.On("Enqueue", mock.Anything, queue.TaskMail, Message{To: "ayla@example.com", Subject: "Hi", Body: "code 123456"}).
		Return("1-0", nil)

	m := NewStreamMailer(q, zerolog.Nop())
	require.NoError(t, m.Send(context.Background(), "ayla@example.com", "Hi", "code 123456"))
	q.AssertExpectations(t)
}

func TestStreamMailerSurfacesQueueErrors(t *testing.T) {
	q := &mockEnqueuer{}
	q.On("Enqueue", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("redis down"))

	m := NewStreamMailer(q, zerolog.Nop())
	assert.EqualError(t, m.Send(context.Background(), "a@example.com", "s", "b"), "redis down")
}

func TestSMTPSenderComposesMessage(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	sender := NewSMTPSender(config.MailConfig{Host: "mail.local", Port: 2525, From: "no-reply@battlearena.local"})
	sender.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	sender.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		gotMsg = string(msg)
		assert.Nil(t, a)
		return nil
	}

	raw, err := json.Marshal(Message{To: "ayla@example.com", Subject: "Verify", Body: "123456"})
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))

	require.NoError(t, sender.Send(context.Background(), msg))
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, []string{"ayla@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Verify\r\n")
	assert.Contains(t, gotMsg, "From: no-reply@battlearena.local\r\n")
	assert.Contains(t, gotMsg, "\r\n\r\n123456\r\n")

	assert.ErrorIs(t, sender.Send(context.Background(), Message{}), ErrNoRecipient)
}
