package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/geofence"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/reminder"
)

type probeRequest struct {
	WorkerHandle string `json:"worker_handle" validate:"required"`
	SessionID    string `json:"session_id,omitempty"`
	Deliver      bool   `json:"deliver,omitempty"`
}

type probeResponse struct {
	Matched         bool                     `json:"matched"`
	BranchID        string                   `json:"branch_id"`
	BranchName      string                   `json:"branch_name"`
	SessionID       string                   `json:"session_id"`
	Reminder        *domain.CheckoutReminder `json:"reminder"`
	Created         bool                     `json:"created"`
	ObservedAddress string                   `json:"observed_address"`
	DeliveryError   string                   `json:"delivery_error,omitempty"`
}

type respondRequest struct {
	WorkerHandle    string `json:"worker_handle" validate:"required"`
	ReminderID      string `json:"reminder_id,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
	ResponseType    string `json:"response_type" validate:"required,oneof=i_left im_at_work 45min 2hours all_day"`
	ObservedAddress string `json:"observed_address,omitempty"` // used when the headers carry none
}

type respondResponse struct {
	Reminder             *domain.CheckoutReminder `json:"reminder"`
	Session              *domain.PresenceSession  `json:"session,omitempty"`
	NextReminder         *domain.CheckoutReminder `json:"next_reminder,omitempty"`
	NextPromptAt         *time.Time               `json:"next_prompt_at,omitempty"`
	SessionAlreadyClosed bool                     `json:"session_already_closed,omitempty"`
}

// ReminderHandler mini-app endpoints of the reminder state machine
type ReminderHandler struct {
	machine *reminder.Machine
	logger  *zap.Logger
}

func NewReminderHandler(machine *reminder.Machine, logger *zap.Logger) *ReminderHandler {
	return &ReminderHandler{machine: machine, logger: logger}
}

// Probe handles POST /api/v1/presence/probe
func (h *ReminderHandler) Probe(w http.ResponseWriter, r *http.Request) {
	var req probeRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}
	res, err := h.machine.Probe(r.Context(), reminder.ProbeRequest{
		WorkerHandle:    req.WorkerHandle,
		SessionID:       req.SessionID,
		ObservedAddress: geofence.ObservedAddress(r.Header),
		Deliver:         req.Deliver,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(probeResponse{
		Matched:         res.Matched,
		BranchID:        res.BranchID,
		BranchName:      res.BranchName,
		SessionID:       res.SessionID,
		Reminder:        res.Reminder,
		Created:         res.Created,
		ObservedAddress: res.ObservedAddress,
		DeliveryError:   deliveryError(res.DeliveryError),
	}))
}

// Respond handles POST /api/v1/reminders/respond
func (h *ReminderHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}
	rr := reminder.RespondRequest{
		WorkerHandle: req.WorkerHandle,
		ReminderID:   req.ReminderID,
		SessionID:    req.SessionID,
		ResponseType: domain.ResponseType(req.ResponseType),
	}
	addr := geofence.ObservedAddress(r.Header)
	if addr == geofence.UnknownAddress {
		addr = strings.TrimSpace(req.ObservedAddress)
	}
	if addr != "" && addr != geofence.UnknownAddress {
		rr.ObservedAddress = &addr
	}
	res, err := h.machine.Respond(r.Context(), rr)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(respondResponse{
		Reminder:             res.Reminder,
		Session:              res.Session,
		NextReminder:         res.Next,
		NextPromptAt:         res.NextPromptAt,
		SessionAlreadyClosed: res.SessionAlreadyClosed,
	}))
}
