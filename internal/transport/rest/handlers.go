package rest

import (
	"net/http"

	"github.com/baechuer/ticketqueue/internal/domain"
	appCtx "github.com/baechuer/ticketqueue/internal/pkg/context"
	"github.com/baechuer/ticketqueue/internal/queue"
	"github.com/baechuer/ticketqueue/internal/service"
	"github.com/baechuer/ticketqueue/internal/transport/rest/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// Handler groups the three buyer-facing services, the admin service and
// the Processor's health snapshot behind spec §6's six external
// interfaces plus event creation.
type Handler struct {
	Intake       *service.IntakeService
	Cancellation *service.CancellationService
	Query        *service.QueryService
	Admin        *service.AdminService
	ProcHealth   *queue.Health
}

func NewHandler(intake *service.IntakeService, cancellation *service.CancellationService, query *service.QueryService, admin *service.AdminService, health *queue.Health) *Handler {
	return &Handler{Intake: intake, Cancellation: cancellation, Query: query, Admin: admin, ProcHealth: health}
}

// SubmitIntent implements "Submit purchase intent" (spec §6, POST
// /api/v1/intents): create-or-retrieve the caller's intent for
// (event, session).
func (h *Handler) SubmitIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventID   string `json:"event_id"`
		Quantity  int    `json:"quantity"`
		SessionID string `json:"session_id"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid event_id", map[string]string{"field": "event_id"})
		return
	}

	handle, err := h.Intake.Submit(r.Context(), eventID, req.SessionID, req.Quantity)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]any{
		"success":                true,
		"intent_id":              handle.IntentID,
		"queue_position":         handle.QueuePosition,
		"estimated_wait_seconds": handle.EstimatedWaitSeconds,
		"status":                 handle.Status,
	})
}

// CancelIntent implements "Cancel intent" (spec §6, DELETE
// /api/v1/intents/{intentID}; session_id carried in the body).
func (h *Handler) CancelIntent(w http.ResponseWriter, r *http.Request) {
	intentID, err := uuid.Parse(chi.URLParam(r, "intentID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid intent id", nil)
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}

	outcome, err := h.Cancellation.Cancel(r.Context(), intentID, req.SessionID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	if outcome.Kind == domain.CancelNotCancellable {
		response.Data(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "intent is no longer cancellable, current status: " + string(outcome.CurrentStatus),
		})
		return
	}
	response.Data(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "intent cancelled",
	})
}

// IntentStatus implements "Intent status" (spec §6/§4.6 Position).
func (h *Handler) IntentStatus(w http.ResponseWriter, r *http.Request) {
	intentID, err := uuid.Parse(chi.URLParam(r, "intentID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid intent id", nil)
		return
	}

	pos, err := h.Query.Position(r.Context(), intentID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	body := map[string]any{
		"status": pos.Status,
		"event": map[string]any{
			"id":        pos.Event.ID,
			"name":      pos.Event.Name,
			"starts_at": pos.Event.StartsAt,
		},
	}
	if !pos.Status.IsTerminal() && pos.Status != domain.StatusProcessing {
		body["queue_position"] = pos.QueuePosition
		body["estimated_wait_seconds"] = pos.EstimatedWaitSeconds
	}
	if pos.TerminalReason != "" {
		body["purchase_result"] = pos.TerminalReason
	}
	response.Data(w, http.StatusOK, body)
}

// IntentCompletion implements "Intent completion" (spec §6/§4.6 Completion).
func (h *Handler) IntentCompletion(w http.ResponseWriter, r *http.Request) {
	intentID, err := uuid.Parse(chi.URLParam(r, "intentID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid intent id", nil)
		return
	}

	result, err := h.Query.Completion(r.Context(), intentID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	if !result.Ready {
		response.Data(w, http.StatusOK, map[string]any{
			"status":  result.Status,
			"success": false,
			"message": "not ready",
		})
		return
	}

	body := map[string]any{
		"status":  result.Status,
		"success": result.Status == domain.StatusCompleted,
	}
	if result.Status == domain.StatusCompleted {
		body["purchase_id"] = intentID
		body["tickets"] = result.Tickets
	} else {
		body["message"] = result.Reason
	}
	response.Data(w, http.StatusOK, body)
}

// EventQueueStats implements "Event queue stats" (spec §6/§4.6 Stats).
func (h *Handler) EventQueueStats(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid event id", nil)
		return
	}

	stats, err := h.Query.Stats(r.Context(), eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]any{
		"waiting":      stats.Waiting,
		"processing":   stats.Processing,
		"completed":    stats.Completed,
		"failed":       stats.Failed,
		"expired":      stats.Expired,
		"total_active": stats.Waiting + stats.Processing,
	})
}

// ProcessorHealth implements "Processor health" (spec §6): a live snapshot
// of the Queue Processor's counters, no database round trip involved.
func (h *Handler) ProcessorHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.ProcHealth.Snapshot()
	body := map[string]any{
		"is_running":                 snap.IsRunning,
		"total_processed":            snap.TotalProcessed,
		"total_failed":               snap.TotalFailed,
		"average_processing_time_ms": snap.AverageProcessingTimeMS,
	}
	if !snap.LastProcessedAt.IsZero() {
		body["last_processed_at"] = snap.LastProcessedAt
	}
	response.Data(w, http.StatusOK, body)
}

// CreateEvent is the one administrative write operation (spec §4.7),
// exposed for operators seeding events outside the buyer-facing flow.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		StartsAt     string `json:"starts_at"`
		TotalTickets int    `json:"total_tickets"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	startsAt, err := parseRFC3339(req.StartsAt)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid starts_at", map[string]string{"field": "starts_at"})
		return
	}

	ev, err := h.Admin.CreateEvent(r.Context(), req.Name, startsAt, req.TotalTickets)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, ev)
}

func handleErr(w http.ResponseWriter, r *http.Request, err error) {
	switch domain.CodeOf(err) {
	case domain.CodeInvalidRequest:
		fail(w, r, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	case domain.CodeNotFound:
		fail(w, r, http.StatusNotFound, "not_found", err.Error(), nil)
	case domain.CodeForbidden:
		fail(w, r, http.StatusForbidden, "forbidden", err.Error(), nil)
	case domain.CodeUnavailable:
		fail(w, r, http.StatusConflict, "unavailable", err.Error(), nil)
	case domain.CodeInsufficient:
		fail(w, r, http.StatusConflict, "insufficient", err.Error(), nil)
	case domain.CodeEventPast:
		fail(w, r, http.StatusGone, "event_past", err.Error(), nil)
	case domain.CodeConflict:
		fail(w, r, http.StatusConflict, "conflict", err.Error(), nil)
	case domain.CodeTimeout:
		fail(w, r, http.StatusGatewayTimeout, "timeout", err.Error(), nil)
	default:
		fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	reqID := appCtx.GetRequestID(r.Context())
	if reqID == "" {
		reqID = "no-request-id"
	}
	response.Fail(w, status, code, message, meta, reqID)
}
