// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/civichub/internal/app/system/auth"
	"go.uber.org/zap"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// Body is the JSON shape of every error response.
type Body struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Write sends {"error": msg} with the given status.
func Write(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, Body{Error: msg})
}

// Validation sends a 400 listing the offending fields.
func Validation(w http.ResponseWriter, msg string, fields []string) {
	WriteJSON(w, http.StatusBadRequest, Body{Error: msg, Fields: fields})
}

func Unauthorized(w http.ResponseWriter) {
	Write(w, http.StatusUnauthorized, "sign in required")
}

func NotFound(w http.ResponseWriter, msg string) {
	Write(w, http.StatusNotFound, msg)
}

func Conflict(w http.ResponseWriter, msg string) {
	Write(w, http.StatusConflict, msg)
}

// TooManyRequests sends a 429 with a Retry-After header.
func TooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	Write(w, http.StatusTooManyRequests, "too many requests, try again later")
}

// ErrDecode wraps a malformed request body.
var ErrDecode = errors.New("invalid JSON body")

// DecodeJSON reads a JSON body of at most MaxBodyBytes into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrDecode
		}
		return errors.Join(ErrDecode, err)
	}
	return nil
}

// ErrorLogger logs handler failures with request context and writes the
// matching JSON error.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger creates an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	f := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if u, ok := auth.CurrentUser(r); ok {
		f = append(f, zap.String("user_id", u.ID))
	}
	if err != nil {
		f = append(f, zap.Error(err))
	}
	return f
}

// LogServerError logs at error level and sends a 500 with userMsg.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg string) {
	e.log.Error(logMsg, e.fields(r, err)...)
	Write(w, http.StatusInternalServerError, userMsg)
}

// LogBadRequest logs at info level and sends a 400 with userMsg.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg string) {
	e.log.Info(logMsg, e.fields(r, err)...)
	Write(w, http.StatusBadRequest, userMsg)
}

// LogForbidden logs at warn level and sends a 403 with userMsg.
func (e *ErrorLogger) LogForbidden(w http.ResponseWriter, r *http.Request, logMsg string, userMsg string) {
	e.log.Warn(logMsg, e.fields(r, nil)...)
	Write(w, http.StatusForbidden, userMsg)
}

// LogUpstream logs a failed call to an outside service and sends status
// (502 or 503) with userMsg.
func (e *ErrorLogger) LogUpstream(w http.ResponseWriter, r *http.Request, status int, logMsg string, err error, userMsg string) {
	e.log.Warn(logMsg, e.fields(r, err)...)
	Write(w, status, userMsg)
}
