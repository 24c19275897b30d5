package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

// sendMessageRequest bot API sendMessage body
type sendMessageRequest struct {
	ChatID      string      `json:"chat_id"`
	Text        string      `json:"text"`
	ReplyMarkup replyMarkup `json:"reply_markup"`
}

// botResponse bot API envelope
type botResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// BotDispatcher sends prompts through the messaging bot HTTP API.
type BotDispatcher struct {
	httpClient *resty.Client
	token      string
	logger     *zap.Logger
}

func NewBotDispatcher(baseURL, token string, logger *zap.Logger) *BotDispatcher {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &BotDispatcher{
		httpClient: client,
		token:      token,
		logger:     logger,
	}
}

var _ Dispatcher = (*BotDispatcher)(nil)

func (d *BotDispatcher) Channel() string { return "bot" }

func (d *BotDispatcher) Dispatch(ctx context.Context, p Payload) error {
	if p.WorkerHandle == "" {
		return fmt.Errorf("worker %s has no messaging handle", p.WorkerID)
	}

	keyboard := make([][]inlineButton, 0, len(p.Actions))
	for _, a := range p.Actions {
		keyboard = append(keyboard, []inlineButton{{Text: a.Label, CallbackData: a.CallbackData}})
	}
	request := sendMessageRequest{
		ChatID:      p.WorkerHandle,
		Text:        p.Text,
		ReplyMarkup: replyMarkup{InlineKeyboard: keyboard},
	}

	var result, failure botResponse
	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&result).
		SetError(&failure).
		Post("/bot" + d.token + "/sendMessage")
	if err != nil {
		d.logger.Error("Bot API call failed",
			zap.String("reminder_id", p.ReminderID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to call bot API: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("bot API error: %s (status: %d)", failure.Description, resp.StatusCode())
	}
	if !result.OK {
		return fmt.Errorf("bot API rejected message: %s", result.Description)
	}

	d.logger.Debug("Checkout prompt sent via bot",
		zap.String("reminder_id", p.ReminderID),
		zap.String("worker_handle", p.WorkerHandle),
	)
	return nil
}
