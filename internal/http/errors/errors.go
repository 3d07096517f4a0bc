// Package errors renders failures to clients and logs them with the chi
// request ID so a user-visible notice can be matched to its log line.
package errors

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

func logf(ctx context.Context, level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if requestID := middleware.GetReqID(ctx); requestID != "" {
		log.Printf("[%s] RequestID=%s: %s", level, requestID, msg)
		return
	}
	log.Printf("[%s] %s", level, msg)
}

// InternalError logs err and answers with a generic 500.
func InternalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	logf(r.Context(), "ERROR", "%s: %v", message, err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// BadRequestError logs err and answers with clientMessage.
func BadRequestError(w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	logf(r.Context(), "WARN", "bad request: %v", err)
	http.Error(w, clientMessage, http.StatusBadRequest)
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "not found", http.StatusNotFound)
}

func LogError(ctx context.Context, message string, err error) {
	logf(ctx, "ERROR", "%s: %v", message, err)
}

func LogWarn(ctx context.Context, message string, err error) {
	logf(ctx, "WARN", "%s: %v", message, err)
}

func LogInfo(ctx context.Context, message string) {
	logf(ctx, "INFO", "%s", message)
}
