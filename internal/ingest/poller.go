package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-bot-engine/internal/bot"
	"telegram-bot-engine/internal/infra/logging"
	"telegram-bot-engine/internal/infra/metrics"
)

// PollOptions tunes one bot's long-poll loop.
type PollOptions struct {
	// Timeout is the long-poll timeout in seconds passed to getUpdates.
	Timeout int
	// Sleep is the pause between successful cycles.
	Sleep time.Duration
	// Once runs a single fetch/dispatch cycle; a fetch failure is then
	// terminal instead of being retried.
	Once bool
	// Offset is the initial update offset; 0 starts from the backlog.
	Offset int64
}

// Poller runs the pull loop for one bot. Updates inside a batch are
// dispatched in the order Telegram returned them, on a single goroutine, so
// per-chat ordering holds without extra locking.
type Poller struct {
	bot *bot.Bot
	log *zerolog.Logger
}

func NewPoller(b *bot.Bot, logger *zerolog.Logger) *Poller {
	return &Poller{bot: b, log: logger}
}

// Run polls until ctx is done (or after one cycle in once mode). The offset
// advances to one past the highest update id seen and never regresses, so a
// batch is dispatched at most once.
func (p *Poller) Run(ctx context.Context, opts PollOptions) error {
	name := p.bot.Name()
	offset := opts.Offset

	p.log.Info().Str("bot", name).Int("timeout", opts.Timeout).Bool("once", opts.Once).Msg("polling started")

	for {
		if err := ctx.Err(); err != nil {
			p.log.Info().Str("bot", name).Msg("polling stopped")
			return nil
		}

		updates, err := p.bot.Client().GetUpdates(ctx, offset, opts.Timeout)
		if err != nil {
			metrics.APIError(name, "getUpdates")
			p.log.Error().Str("bot", name).Int64("offset", offset).Err(err).Msg("getUpdates failed")
			if opts.Once {
				return err
			}
			continue
		}

		metrics.PollBatch(name, len(updates))
		for _, upd := range updates {
			if upd == nil {
				continue
			}
			uctx := logging.WithTraceID(ctx, uuid.NewString())
			uctx = logging.WithBotName(uctx, name)

			metrics.UpdateReceived(name, "poll")
			handled := p.bot.Handle(uctx, upd)
			metrics.UpdateHandled(name, outcome(handled))

			if upd.UpdateID != nil && *upd.UpdateID+1 > offset {
				offset = *upd.UpdateID + 1
			}
		}

		if opts.Once {
			return nil
		}

		if opts.Sleep > 0 {
			select {
			case <-time.After(opts.Sleep):
			case <-ctx.Done():
				p.log.Info().Str("bot", name).Msg("polling stopped")
				return nil
			}
		}
	}
}
