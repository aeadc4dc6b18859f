package telegram

import (
	"context"

	"github.com/rs/zerolog"
)

// MessageCleaner deletes previously sent messages. Deletion is best-effort
// by default: failures are logged and swallowed. In strict mode the first
// failure is returned to the caller.
type MessageCleaner struct {
	client Client
	strict bool
	log    *zerolog.Logger
}

func NewMessageCleaner(client Client, strict bool, logger *zerolog.Logger) *MessageCleaner {
	return &MessageCleaner{client: client, strict: strict, log: logger}
}

// Clean deletes the given message ids from the chat.
func (c *MessageCleaner) Clean(ctx context.Context, chatID int64, messageIDs []int) error {
	for _, id := range messageIDs {
		if err := c.client.DeleteMessage(ctx, chatID, id); err != nil {
			if c.strict {
				return err
			}
			c.log.Debug().
				Int64("chat_id", chatID).
				Int("message_id", id).
				Err(err).
				Msg("message cleanup failed")
		}
	}
	return nil
}
