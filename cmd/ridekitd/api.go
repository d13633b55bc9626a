package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/ridekit/pkg/dispatch"
	"github.com/dmitrymomot/ridekit/pkg/logger"
)

// api exposes the dispatch engine over REST. Realtime traffic goes through
// the websocket endpoint; this surface is for backend services that trigger
// notifications.
type api struct {
	engine *dispatch.Engine
	log    *slog.Logger
}

func newAPI(engine *dispatch.Engine, log *slog.Logger) *api {
	return &api{engine: engine, log: log}
}

func (a *api) router() chi.Router {
	r := chi.NewRouter()
	r.Post("/notifications", a.handleDispatch)
	r.Post("/notifications/bulk", a.handleDispatchBulk)
	r.Delete("/jobs/{jobID}", a.handleCancel)
	return r
}

type dispatchBody struct {
	UserID     string            `json:"user_id"`
	UserIDs    []string          `json:"user_ids,omitempty"`
	Category   string            `json:"category"`
	Priority   dispatch.Priority `json:"priority,omitempty"`
	ScheduleAt *time.Time        `json:"schedule_at,omitempty"`
	Payloads   []json.RawMessage `json:"payloads"`
}

type receiptBody struct {
	NotificationID string            `json:"notification_id"`
	Jobs           map[string]string `json:"jobs,omitempty"`
	Suppressed     map[string]string `json:"suppressed,omitempty"`
	ScheduledAt    *time.Time        `json:"scheduled_at,omitempty"`
}

func toReceiptBody(r dispatch.Receipt) receiptBody {
	out := receiptBody{
		NotificationID: r.NotificationID.String(),
		ScheduledAt:    r.ScheduledAt,
	}
	if len(r.JobIDs) > 0 {
		out.Jobs = make(map[string]string, len(r.JobIDs))
		for ch, id := range r.JobIDs {
			out.Jobs[string(ch)] = id.String()
		}
	}
	if len(r.Suppressed) > 0 {
		out.Suppressed = make(map[string]string, len(r.Suppressed))
		for ch, reason := range r.Suppressed {
			out.Suppressed[string(ch)] = string(reason)
		}
	}
	return out
}

func (a *api) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var body dispatchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req, err := body.toRequest()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var receipt dispatch.Receipt
	if body.ScheduleAt != nil {
		receipt, err = a.engine.Schedule(r.Context(), req, *body.ScheduleAt)
	} else {
		receipt, err = a.engine.Dispatch(r.Context(), req)
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toReceiptBody(receipt))
}

func (a *api) handleDispatchBulk(w http.ResponseWriter, r *http.Request) {
	body, req, ok := a.decodeBulkRequest(w, r)
	if !ok {
		return
	}

	results := a.engine.DispatchBulk(r.Context(), body.UserIDs, req)
	out := make([]map[string]any, 0, len(results))
	for _, res := range results {
		entry := map[string]any{
			"user_id": res.UserID,
			"outcome": string(res.Outcome),
		}
		if res.Err != nil {
			entry["error"] = res.Err.Error()
		} else {
			entry["receipt"] = toReceiptBody(res.Receipt)
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"results": out})
}

func (a *api) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid job id"})
		return
	}
	if err := a.engine.Cancel(r.Context(), jobID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) decodeBulkRequest(w http.ResponseWriter, r *http.Request) (dispatchBody, dispatch.Request, bool) {
	var body dispatchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return body, dispatch.Request{}, false
	}
	if len(body.UserIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_ids is required"})
		return body, dispatch.Request{}, false
	}
	req, err := body.toRequest()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return body, dispatch.Request{}, false
	}
	return body, req, true
}

func (b dispatchBody) toRequest() (dispatch.Request, error) {
	payloads := make([]dispatch.Payload, 0, len(b.Payloads))
	for _, raw := range b.Payloads {
		p, err := dispatch.DecodePayload(raw)
		if err != nil {
			return dispatch.Request{}, err
		}
		payloads = append(payloads, p)
	}

	priority := b.Priority
	if priority == "" {
		priority = dispatch.PriorityNormal
	}

	return dispatch.Request{
		NotificationID: uuid.New(),
		UserID:         b.UserID,
		Category:       b.Category,
		Priority:       priority,
		Payloads:       payloads,
	}, nil
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dispatch.ErrInvalidRequest),
		errors.Is(err, dispatch.ErrInvalidPayload),
		errors.Is(err, dispatch.ErrInvalidChannel),
		errors.Is(err, dispatch.ErrInvalidSchedule),
		errors.Is(err, dispatch.ErrNoChannels):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, dispatch.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, dispatch.ErrJobNotCancellable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		a.log.ErrorContext(r.Context(), "request failed", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
