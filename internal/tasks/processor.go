package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"battlearena/internal/mail"
	"battlearena/internal/queue"
)

type MailSender interface {
	Send(ctx context.Context, msg mail.Message) error
}

type AccountSweeper interface {
	SweepUnverified(ctx context.Context, now time.Time) (int64, error)
}

// Processor runs the worker side of each task type.
type Processor struct {
	mailer  MailSender
	sweeper AccountSweeper
	logger  zerolog.Logger
	now     func() time.Time
}

func NewProcessor(mailer MailSender, sweeper AccountSweeper, logger zerolog.Logger) *Processor {
	return &Processor{
		mailer:  mailer,
		sweeper: sweeper,
		logger:  logger,
		now:     time.Now,
	}
}

func (p *Processor) Handle(ctx context.Context, task queue.Task) error {
	switch task.Type {
	case queue.TaskMail:
		return p.handleMail(ctx, task)
	case queue.TaskExpireUnverified:
		return p.handleExpireUnverified(ctx)
	default:
		p.logger.Warn().Str("type", task.Type).Str("task_id", task.ID).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handleMail(ctx context.Context, task queue.Task) error {
	var msg mail.Message
	if err := task.Decode(&msg); err != nil {
		return fmt.Errorf("decode mail task: %w", err)
	}
	if err := p.mailer.Send(ctx, msg); err != nil {
		return err
	}
	p.logger.Info().Str("task_id", task.ID).Str("subject", msg.Subject).Msg("mail delivered")
	return nil
}

func (p *Processor) handleExpireUnverified(ctx context.Context) error {
	removed, err := p.sweeper.SweepUnverified(ctx, p.now())
	if err != nil {
		return err
	}
	p.logger.Debug().Int64("removed", removed).Msg("expire-unverified sweep finished")
	return nil
}
