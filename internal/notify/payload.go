// Package notify builds checkout prompts and hands them to a messaging transport.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
)

// CallbackPrefix starts the callback data of every checkout prompt action.
const CallbackPrefix = "checkout"

// Action one inline button; Code is the response type it answers with.
type Action struct {
	Code         domain.ResponseType `json:"code"`
	Label        string              `json:"label"`
	CallbackData string              `json:"callback_data"`
}

// Payload the outbound notification contract.
type Payload struct {
	WorkerHandle string    `json:"worker_handle"`
	WorkerID     string    `json:"worker_id"`
	ReminderID   string    `json:"reminder_id"`
	SessionID    string    `json:"session_id"`
	Text         string    `json:"text"`
	Actions      []Action  `json:"actions"`
	CreatedAt    time.Time `json:"created_at"`
}

// Dispatcher delivers a payload over one channel.
type Dispatcher interface {
	Channel() string
	Dispatch(ctx context.Context, p Payload) error
}

// Templates prompt wording. Body may use {name} and {check_in}.
type Templates struct {
	Body   string                         `yaml:"body"`
	Labels map[domain.ResponseType]string `yaml:"labels"`
}

// DefaultTemplates Russian / Uzbek prompt.
func DefaultTemplates() Templates {
	return Templates{
		Body: "{name}, вы ещё на работе? Вы отметились в {check_in}.\n" +
			"{name}, hali ishdamisiz? Siz {check_in} da belgilangansiz.",
		Labels: map[domain.ResponseType]string{
			domain.ResponseILeft:  "Я ушёл / Ketdim",
			domain.ResponseAtWork: "Я на работе / Ishdaman",
			domain.Response45Min:  "Через 45 мин / 45 daqiqadan keyin",
			domain.Response2Hours: "Через 2 часа / 2 soatdan keyin",
			domain.ResponseAllDay: "Весь день / Kun bo'yi",
		},
	}
}

// merged fills labels and body missing from t with the defaults.
func (t Templates) merged() Templates {
	def := DefaultTemplates()
	out := Templates{Body: t.Body, Labels: map[domain.ResponseType]string{}}
	if out.Body == "" {
		out.Body = def.Body
	}
	for _, rt := range domain.ResponseTypes {
		if l := t.Labels[rt]; l != "" {
			out.Labels[rt] = l
		} else {
			out.Labels[rt] = def.Labels[rt]
		}
	}
	return out
}

// Builder renders checkout prompts.
type Builder struct {
	templates Templates
	loc       *time.Location
}

func NewBuilder(t Templates, loc *time.Location) *Builder {
	return &Builder{templates: t.merged(), loc: loc}
}

// Build renders the prompt for rem, one action per response type in button order.
func (b *Builder) Build(worker domain.Worker, session domain.PresenceSession, rem domain.CheckoutReminder, now time.Time) Payload {
	checkIn := session.CheckInAt.In(b.loc).Format("15:04")
	text := strings.NewReplacer("{name}", worker.FullName, "{check_in}", checkIn).Replace(b.templates.Body)

	actions := make([]Action, 0, len(domain.ResponseTypes))
	for _, rt := range domain.ResponseTypes {
		actions = append(actions, Action{
			Code:         rt,
			Label:        b.templates.Labels[rt],
			CallbackData: EncodeCallback(rem.ReminderID, rt),
		})
	}
	return Payload{
		WorkerHandle: worker.ExternalHandle,
		WorkerID:     worker.WorkerID,
		ReminderID:   rem.ReminderID,
		SessionID:    rem.SessionID,
		Text:         text,
		Actions:      actions,
		CreatedAt:    now,
	}
}

// EncodeCallback returns checkout:<reminderID>:<code>.
func EncodeCallback(reminderID string, rt domain.ResponseType) string {
	return fmt.Sprintf("%s:%s:%s", CallbackPrefix, reminderID, rt)
}

// DecodeCallback parses data produced by EncodeCallback.
func DecodeCallback(data string) (string, domain.ResponseType, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != CallbackPrefix || parts[1] == "" {
		return "", "", domain.Validationf("unrecognised callback data %q", data)
	}
	rt, err := domain.ParseResponseType(parts[2])
	if err != nil {
		return "", "", err
	}
	return parts[1], rt, nil
}
