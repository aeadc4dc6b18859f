package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"telegram-bot-engine/internal/bot"
	"telegram-bot-engine/internal/domain"
)

// Runner fans the poll loop out across bots: one goroutine per bot, no
// shared mutable state between them beyond the conversation store. A
// multi-bot run waits for every loop and fails if any loop failed.
type Runner struct {
	registry *bot.Registry
	log      *zerolog.Logger
}

func NewRunner(registry *bot.Registry, logger *zerolog.Logger) *Runner {
	return &Runner{registry: registry, log: logger}
}

// Run polls the named bots; an empty name list means every registered bot.
// Unknown names are rejected before any loop starts.
func (r *Runner) Run(ctx context.Context, names []string, opts PollOptions) error {
	if len(names) == 0 {
		names = r.registry.Names()
	}
	if len(names) == 0 {
		return fmt.Errorf("ingest: %w: no bots registered", domain.ErrBotNotFound)
	}

	bots := make([]*bot.Bot, 0, len(names))
	for _, name := range names {
		b, err := r.registry.Bot(name)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		bots = append(bots, b)
	}

	if len(bots) == 1 {
		return NewPoller(bots[0], r.log).Run(ctx, opts)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(bots))
	for i, b := range bots {
		wg.Add(1)
		go func(i int, b *bot.Bot) {
			defer wg.Done()
			if err := NewPoller(b, r.log).Run(ctx, opts); err != nil {
				r.log.Error().Str("bot", b.Name()).Err(err).Msg("poll loop failed")
				errs[i] = fmt.Errorf("bot %q: %w", b.Name(), err)
			}
		}(i, b)
	}
	wg.Wait()

	return errors.Join(errs...)
}
