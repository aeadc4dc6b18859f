package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SentMessage is the part of a sendMessage response the engine cares about.
type SentMessage struct {
	MessageID int `json:"message_id"`
}

// SendOptions carries the optional knobs of sendMessage.
type SendOptions struct {
	ParseMode           string
	DisableNotification bool
	// ReplyMarkup is marshaled as-is into the reply_markup parameter.
	ReplyMarkup any
}

// BotCommand is one entry for setMyCommands.
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// Client is the outbound Telegram surface consumed by the router,
// the conversation engine and the ingestion adapters.
type Client interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*SentMessage, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]*Update, error)
}

var _ Client = (*BotClient)(nil)

// BotClient implements Client on top of the tgbotapi transport.
type BotClient struct {
	api *tgbotapi.BotAPI
}

// NewBotClient authorizes the token against the Telegram API.
func NewBotClient(token string) (*BotClient, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize bot: %w", err)
	}
	return &BotClient{api: api}, nil
}

// Username returns the authorized bot's username.
func (c *BotClient) Username() string {
	return c.api.Self.UserName
}

// Request calls an arbitrary API method and returns the raw result payload.
// Failures are reported as *APIError.
func (c *BotClient) Request(ctx context.Context, method string, params map[string]string) (json.RawMessage, error) {
	resp, err := c.api.MakeRequest(method, tgbotapi.Params(params))
	if err != nil {
		return nil, wrapAPIError(method, err, resp)
	}
	return resp.Result, nil
}

func (c *BotClient) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*SentMessage, error) {
	params := tgbotapi.Params{
		"chat_id": strconv.FormatInt(chatID, 10),
		"text":    text,
	}
	if opts != nil {
		params.AddNonEmpty("parse_mode", opts.ParseMode)
		params.AddBool("disable_notification", opts.DisableNotification)
		if opts.ReplyMarkup != nil {
			if err := params.AddInterface("reply_markup", opts.ReplyMarkup); err != nil {
				return nil, fmt.Errorf("telegram: encode reply_markup: %w", err)
			}
		}
	}
	resp, err := c.api.MakeRequest("sendMessage", params)
	if err != nil {
		return nil, wrapAPIError("sendMessage", err, resp)
	}
	var sent SentMessage
	if err := json.Unmarshal(resp.Result, &sent); err != nil {
		return nil, fmt.Errorf("telegram: decode sendMessage result: %w", err)
	}
	return &sent, nil
}

func (c *BotClient) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	params := tgbotapi.Params{
		"chat_id":    strconv.FormatInt(chatID, 10),
		"message_id": strconv.Itoa(messageID),
	}
	resp, err := c.api.MakeRequest("deleteMessage", params)
	if err != nil {
		return wrapAPIError("deleteMessage", err, resp)
	}
	return nil
}

func (c *BotClient) GetUpdates(ctx context.Context, offset int64, timeout int) ([]*Update, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("offset", offset)
	params.AddNonZero("timeout", timeout)
	resp, err := c.api.MakeRequest("getUpdates", params)
	if err != nil {
		return nil, wrapAPIError("getUpdates", err, resp)
	}
	var updates []*Update
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("telegram: decode getUpdates result: %w", err)
	}
	return updates, nil
}

// SetWebhook points Telegram at the given public URL.
func (c *BotClient) SetWebhook(ctx context.Context, url string) error {
	_, err := c.Request(ctx, "setWebhook", map[string]string{"url": url})
	return err
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *BotClient) DeleteWebhook(ctx context.Context) error {
	_, err := c.Request(ctx, "deleteWebhook", nil)
	return err
}

// SetMyCommands publishes the command menu shown by Telegram clients.
func (c *BotClient) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	encoded, err := json.Marshal(commands)
	if err != nil {
		return fmt.Errorf("telegram: encode commands: %w", err)
	}
	_, err = c.Request(ctx, "setMyCommands", map[string]string{"commands": string(encoded)})
	return err
}

// GetWebhookInfo returns the raw getWebhookInfo payload.
func (c *BotClient) GetWebhookInfo(ctx context.Context) (json.RawMessage, error) {
	return c.Request(ctx, "getWebhookInfo", nil)
}

// GetFile resolves a remote file id to a downloadable file path.
func (c *BotClient) GetFile(ctx context.Context, fileID string) (string, error) {
	raw, err := c.Request(ctx, "getFile", map[string]string{"file_id": fileID})
	if err != nil {
		return "", err
	}
	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return "", fmt.Errorf("telegram: decode getFile result: %w", err)
	}
	if file.FilePath == "" {
		return "", &APIError{Description: "file path missing in getFile response"}
	}
	return file.FilePath, nil
}

func wrapAPIError(method string, err error, resp *tgbotapi.APIResponse) error {
	apiErr := &APIError{Method: method, Description: err.Error()}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		apiErr.Code = tgErr.Code
		apiErr.Description = tgErr.Message
	}
	if resp != nil {
		apiErr.Raw = resp.Result
	}
	return apiErr
}
