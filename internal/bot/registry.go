package bot

import (
	"fmt"
	"sort"

	"telegram-bot-engine/internal/domain"
)

// Registry holds named bots plus a default used when no name is given.
type Registry struct {
	defaultName string
	bots        map[string]*Bot
}

func NewRegistry(defaultName string) *Registry {
	return &Registry{defaultName: defaultName, bots: make(map[string]*Bot)}
}

// Add registers a bot under its name, replacing any previous registration.
func (r *Registry) Add(b *Bot) {
	r.bots[b.Name()] = b
}

// DefaultName returns the name resolved when the caller passes "".
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Names lists registered bot names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.bots))
	for name := range r.bots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bot resolves a bot by name; the empty name resolves to the default bot.
func (r *Registry) Bot(name string) (*Bot, error) {
	if name == "" {
		name = r.defaultName
	}
	b, ok := r.bots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrBotNotFound, name)
	}
	return b, nil
}
