package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/feelens/feelens-core/internal/apperr"
)

// okEnvelope wraps every successful response.
type okEnvelope struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

// errEnvelope wraps every failed response.
type errEnvelope struct {
	OK                bool              `json:"ok"`
	ErrorCode         string            `json:"error_code"`
	Message           string            `json:"message"`
	Details           map[string]string `json:"details,omitempty"`
	RetryAfterSeconds int               `json:"retry_after_seconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, okEnvelope{OK: true, Data: data})
}

// writeError translates domain errors into the wire envelope. Anything that
// is not an apperr.Error is an internal error: logged in full, surfaced
// generic.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		zap.L().Error("internal error",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errEnvelope{
			ErrorCode: string(apperr.CodeInternal),
			Message:   "internal error",
		})
		return
	}

	env := errEnvelope{
		ErrorCode: string(ae.Code),
		Message:   ae.Message,
		Details:   ae.FieldErrors,
	}
	if ae.RetryAfter > 0 {
		env.RetryAfterSeconds = int(ae.RetryAfter.Seconds() + 0.5)
		if env.RetryAfterSeconds < 1 {
			env.RetryAfterSeconds = 1
		}
	}
	writeJSON(w, statusFor(ae.Code), env)
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeAuthRequired:
		return http.StatusUnauthorized
	case apperr.CodeNotFound, apperr.CodeProviderNotFound, apperr.CodeSchemaNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeRateLimitDaily, apperr.CodeRateLimitProvider:
		return http.StatusTooManyRequests
	case apperr.CodeValidationFailed, apperr.CodeProviderNotApproved, apperr.CodeSchemaInactive:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody parses a JSON request body into dst with unknown-field
// tolerance matching the validators' additional-properties policy.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.New(apperr.CodeValidationFailed, "invalid JSON body")
	}
	return nil
}
