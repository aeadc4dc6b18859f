package telegram

import (
	"encoding/json"
	"fmt"

	"telegram-bot-engine/internal/domain"
)

// MessageType tags a message with the first matching payload kind.
type MessageType string

const (
	MessageTypeContact  MessageType = "contact"
	MessageTypeText     MessageType = "text"
	MessageTypePhoto    MessageType = "photo"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeVoice    MessageType = "voice"
	MessageTypeDocument MessageType = "document"
	MessageTypeUnknown  MessageType = "unknown"
)

// User is the sender of a message.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// Contact is a shared phone contact.
type Contact struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name,omitempty"`
	UserID      int64  `json:"user_id,omitempty"`
}

// FileRef is the common shape of video/audio/voice/document attachments.
type FileRef struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id,omitempty"`
}

// PhotoSize is one rendition of a photo; Telegram sends them smallest first.
type PhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Message is one inbound chat message with optional attachment fields.
type Message struct {
	MessageID int         `json:"message_id"`
	From      *User       `json:"from,omitempty"`
	Chat      *Chat       `json:"chat,omitempty"`
	Text      string      `json:"text,omitempty"`
	Contact   *Contact    `json:"contact,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
	Video     *FileRef    `json:"video,omitempty"`
	Audio     *FileRef    `json:"audio,omitempty"`
	Voice     *FileRef    `json:"voice,omitempty"`
	Document  *FileRef    `json:"document,omitempty"`
}

// Type classifies the message. Classification is first-match over a fixed
// priority order: contact > text > photo > video > audio > voice > document.
func (m *Message) Type() MessageType {
	switch {
	case m == nil:
		return MessageTypeUnknown
	case m.Contact != nil:
		return MessageTypeContact
	case m.Text != "":
		return MessageTypeText
	case len(m.Photo) > 0:
		return MessageTypePhoto
	case m.Video != nil:
		return MessageTypeVideo
	case m.Audio != nil:
		return MessageTypeAudio
	case m.Voice != nil:
		return MessageTypeVoice
	case m.Document != nil:
		return MessageTypeDocument
	default:
		return MessageTypeUnknown
	}
}

// Value projects the message onto the single string validators care about:
// text for text messages, the phone number for contacts and the remote file
// id for media. The bool reports whether a value exists.
func (m *Message) Value() (string, bool) {
	switch m.Type() {
	case MessageTypeContact:
		if m.Contact.PhoneNumber == "" {
			return "", false
		}
		return m.Contact.PhoneNumber, true
	case MessageTypeText:
		return m.Text, true
	case MessageTypePhoto:
		// Largest rendition is last.
		id := m.Photo[len(m.Photo)-1].FileID
		return id, id != ""
	case MessageTypeVideo:
		return m.Video.FileID, m.Video.FileID != ""
	case MessageTypeAudio:
		return m.Audio.FileID, m.Audio.FileID != ""
	case MessageTypeVoice:
		return m.Voice.FileID, m.Voice.FileID != ""
	case MessageTypeDocument:
		return m.Document.FileID, m.Document.FileID != ""
	default:
		return "", false
	}
}

// ContactUserID returns the Telegram user id embedded in a shared contact.
func (m *Message) ContactUserID() (int64, bool) {
	if m == nil || m.Contact == nil || m.Contact.UserID == 0 {
		return 0, false
	}
	return m.Contact.UserID, true
}

// Update is one inbound event from Telegram. UpdateID is nil for synthetic
// updates built in process (tests, replays).
type Update struct {
	UpdateID *int64   `json:"update_id,omitempty"`
	Message  *Message `json:"message,omitempty"`
}

// ParseUpdate decodes a raw webhook or getUpdates payload.
func ParseUpdate(raw []byte) (*Update, error) {
	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedUpdate, err)
	}
	if _, ok := probe.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: payload is not an object", domain.ErrMalformedUpdate)
	}
	var upd Update
	if err := json.Unmarshal(raw, &upd); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedUpdate, err)
	}
	return &upd, nil
}

// ChatID returns the chat the update belongs to, if any.
func (u *Update) ChatID() (int64, bool) {
	if u.Message == nil || u.Message.Chat == nil {
		return 0, false
	}
	return u.Message.Chat.ID, true
}

// FromID returns the sender id, if any.
func (u *Update) FromID() (int64, bool) {
	if u.Message == nil || u.Message.From == nil {
		return 0, false
	}
	return u.Message.From.ID, true
}

// Text returns the message text, empty when absent.
func (u *Update) Text() string {
	if u.Message == nil {
		return ""
	}
	return u.Message.Text
}

// Type classifies the embedded message; updates without one are unknown.
func (u *Update) Type() MessageType {
	return u.Message.Type()
}
