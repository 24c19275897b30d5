package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readBodyJSON decodes a bounded body into out. An empty body leaves out untouched.
func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.Validationf("invalid JSON body: %v", err)
	}
	return nil
}

// errorDetails is the result of an error envelope.
type errorDetails struct {
	Kind              domain.ErrorKind     `json:"kind"`
	ExistingCheckIn   *time.Time           `json:"existing_check_in,omitempty"`
	ExistingSessionID string               `json:"existing_session_id,omitempty"`
	RecordedResponse  *domain.ResponseType `json:"recorded_response,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindDeliveryFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	appErr, ok := domain.AsAppError(err)
	if !ok {
		logger.Error("Unclassified error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
		return
	}
	status := statusFor(appErr.Kind)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("kind", string(appErr.Kind)), zap.Error(err))
	}
	writeJSON(w, status, FailWith(appErr.Message, errorDetails{
		Kind:              appErr.Kind,
		ExistingCheckIn:   appErr.ExistingCheckIn,
		ExistingSessionID: appErr.ExistingSessionID,
		RecordedResponse:  appErr.RecordedResponse,
	}))
}

// deliveryError renders a dispatch failure that did not undo the state change.
func deliveryError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
