package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/notify"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/reminder"
)

// HeaderBotSecret carries the secret token the bot platform echoes back.
const HeaderBotSecret = "X-Telegram-Bot-Api-Secret-Token"

type botUser struct {
	ID int64 `json:"id"`
}

type botChat struct {
	ID int64 `json:"id"`
}

type botMessage struct {
	Chat botChat `json:"chat"`
}

type botCallbackQuery struct {
	ID      string      `json:"id"`
	From    botUser     `json:"from"`
	Message *botMessage `json:"message,omitempty"`
	Data    string      `json:"data"`
}

// botUpdate is the subset of a bot platform update the webhook reads.
type botUpdate struct {
	UpdateID      int64             `json:"update_id"`
	CallbackQuery *botCallbackQuery `json:"callback_query,omitempty"`
}

// Webhook acknowledgement statuses.
const (
	AckRecorded        = "recorded"
	AckAlreadyRecorded = "already_recorded"
	AckIgnored         = "ignored"
)

type botAck struct {
	Status           string               `json:"status"`
	ReminderID       string               `json:"reminder_id,omitempty"`
	ResponseType     domain.ResponseType  `json:"response_type,omitempty"`
	RecordedResponse *domain.ResponseType `json:"recorded_response,omitempty"`
}

// BotWebhookHandler turns inline-button callbacks into reminder responses.
type BotWebhookHandler struct {
	machine *reminder.Machine
	secret  string
	logger  *zap.Logger
}

func NewBotWebhookHandler(machine *reminder.Machine, secret string, logger *zap.Logger) *BotWebhookHandler {
	return &BotWebhookHandler{machine: machine, secret: secret, logger: logger}
}

// Handle handles POST /webhook/bot
func (h *BotWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(HeaderBotSecret)), []byte(h.secret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, Fail("invalid webhook secret"))
		return
	}

	var update botUpdate
	if err := readBodyJSON(r, maxBodyBytes, &update); err != nil {
		writeError(w, h.logger, err)
		return
	}
	cq := update.CallbackQuery
	if cq == nil {
		// messages and other update kinds are not ours
		writeJSON(w, http.StatusOK, Ok(botAck{Status: AckIgnored}))
		return
	}

	reminderID, rt, err := notify.DecodeCallback(cq.Data)
	if err != nil {
		h.logger.Info("Ignoring foreign callback", zap.String("data", cq.Data), zap.Int64("update_id", update.UpdateID))
		writeJSON(w, http.StatusOK, Ok(botAck{Status: AckIgnored}))
		return
	}

	handle := strconv.FormatInt(cq.From.ID, 10)
	if cq.Message != nil && cq.Message.Chat.ID != 0 {
		handle = strconv.FormatInt(cq.Message.Chat.ID, 10)
	}

	_, err = h.machine.Respond(r.Context(), reminder.RespondRequest{
		WorkerHandle: handle,
		ReminderID:   reminderID,
		ResponseType: rt,
	})
	if err != nil {
		appErr, ok := domain.AsAppError(err)
		if ok && appErr.Kind == domain.KindConflict && appErr.RecordedResponse != nil && *appErr.RecordedResponse == rt {
			// the platform re-delivered a callback we already applied
			writeJSON(w, http.StatusOK, Ok(botAck{
				Status:           AckAlreadyRecorded,
				ReminderID:       reminderID,
				ResponseType:     rt,
				RecordedResponse: appErr.RecordedResponse,
			}))
			return
		}
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("Bot callback recorded",
		zap.Int64("update_id", update.UpdateID),
		zap.String("callback_id", cq.ID),
		zap.String("reminder_id", reminderID),
		zap.String("response_type", string(rt)),
	)
	writeJSON(w, http.StatusOK, Ok(botAck{Status: AckRecorded, ReminderID: reminderID, ResponseType: rt}))
}
