package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tablegate/tablegate/internal/executor"
	"github.com/tablegate/tablegate/internal/gate"
	"github.com/tablegate/tablegate/internal/gateway"
	"github.com/tablegate/tablegate/internal/llm"
)

// ChatGateway is the single inbound operation the HTTP layer consumes.
type ChatGateway interface {
	Handle(ctx context.Context, sessionID, message string) (gateway.Response, error)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	OK       bool           `json:"ok"`
	Mode     gateway.Mode   `json:"mode"`
	Columns  []string       `json:"columns"`
	Rows     []executor.Row `json:"rows"`
	Analysis string         `json:"analysis"`
	SQL      string         `json:"sql,omitempty"`
	TS       time.Time      `json:"ts"`
}

func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Gateway == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "chat gateway is not configured")
		return
	}

	var request chatRequest
	if err := decodeStrict(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "invalid chat request body")
		return
	}
	if strings.TrimSpace(request.Message) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "please type a question")
		return
	}
	sessionID := strings.TrimSpace(request.SessionID)
	if sessionID == "" {
		sessionID = "default"
	}

	response, err := deps.Gateway.Handle(r.Context(), sessionID, request.Message)
	if err != nil {
		status, message := classifyChatError(err)
		writeError(r.Context(), w, status, message)
		return
	}

	columns := response.Columns
	if columns == nil {
		columns = []string{}
	}
	rows := response.Rows
	if rows == nil {
		rows = []executor.Row{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		OK:       true,
		Mode:     response.Mode,
		Columns:  columns,
		Rows:     rows,
		Analysis: response.Analysis,
		SQL:      response.SQL,
		TS:       time.Now().UTC(),
	})
}

// classifyChatError maps the gateway's error taxonomy onto status codes:
// gate rejections and backend failures are user-visible 4xx, model
// transport failures are 502.
func classifyChatError(err error) (int, string) {
	var rejection *gate.RejectionError
	if errors.As(err, &rejection) {
		return http.StatusBadRequest, rejection.Error()
	}
	var execErr *executor.ExecutionError
	if errors.As(err, &execErr) {
		return http.StatusBadRequest, execErr.Error()
	}
	var genErr *llm.GenerationError
	if errors.As(err, &genErr) {
		return http.StatusBadGateway, genErr.Error()
	}
	if errors.Is(err, gateway.ErrCannotAnswer) {
		return http.StatusUnprocessableEntity, err.Error()
	}
	return http.StatusBadRequest, err.Error()
}

func decodeStrict(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
