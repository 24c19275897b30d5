package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/geofence"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/presence"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/service"
)

type checkInRequest struct {
	WorkerHandle string `json:"worker_handle" validate:"required"`
	ShiftCode    string `json:"shift_code" validate:"omitempty,oneof=day night"`
}

type checkInResponse struct {
	Session     *domain.PresenceSession `json:"session"`
	BranchName  string                  `json:"branch_name"`
	ShiftSource string                  `json:"shift_source"`
}

type checkoutRequest struct {
	CheckOutTime string `json:"check_out_time" validate:"required"`
	CheckOutDate string `json:"check_out_date,omitempty"`
	Verification string `json:"verification,omitempty" validate:"omitempty,oneof=in_person remote reminder_confirmed"`
}

// PresenceHandler check-in and checkout endpoints
type PresenceHandler struct {
	engine *service.Engine
	logger *zap.Logger
}

func NewPresenceHandler(engine *service.Engine, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{engine: engine, logger: logger}
}

// CheckIn handles POST /api/v1/checkin
func (h *PresenceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.CheckIn.CheckIn(r.Context(), service.CheckInRequest{
		WorkerHandle:    req.WorkerHandle,
		ObservedAddress: geofence.ObservedAddress(r.Header),
		ShiftCode:       req.ShiftCode,
	})
	h.writeCheckIn(w, res, err)
}

// CheckInRemote handles POST /api/v1/checkin/remote
func (h *PresenceHandler) CheckInRemote(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.CheckIn.CheckInRemote(r.Context(), service.CheckInRequest{
		WorkerHandle: req.WorkerHandle,
		ShiftCode:    req.ShiftCode,
	})
	h.writeCheckIn(w, res, err)
}

func (h *PresenceHandler) writeCheckIn(w http.ResponseWriter, res *service.CheckInResult, err error) {
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(checkInResponse{
		Session:     res.Session,
		BranchName:  res.BranchName,
		ShiftSource: res.ShiftSource,
	}))
}

// OpenSession handles GET /api/v1/workers/{handle}/session
func (h *PresenceHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	worker, err := h.engine.Workers.GetWorkerByHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	session, err := h.engine.Presence.OpenSession(r.Context(), worker.WorkerID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(session))
}

// Checkout handles POST /api/v1/admin/sessions/{sessionID}/checkout
func (h *PresenceHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !h.decode(w, r, &req) {
		return
	}
	tod, date, err := h.engine.Presence.ParseCheckout(req.CheckOutTime, req.CheckOutDate)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	session, err := h.engine.Machine.CloseSession(r.Context(), presence.CloseRequest{
		SessionID:    chi.URLParam(r, "sessionID"),
		CheckOutTime: tod,
		CheckOutDate: date,
		Verification: domain.VerificationChannel(req.Verification),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(session))
}

// decode reads and validates the body, writing the 400 itself on failure.
func (h *PresenceHandler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	return decodeRequest(w, r, h.logger, out)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger, out any) bool {
	if err := readBodyJSON(r, maxBodyBytes, out); err != nil {
		writeError(w, logger, err)
		return false
	}
	if err := validateRequest(out); err != nil {
		writeError(w, logger, err)
		return false
	}
	return true
}
