package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/traveal-app/traveal-api/internal/app/notifications"
	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/pkg/apierror"
)

type NotificationHandlers struct {
	svc *notifications.Service
}

func NewNotificationHandlers(svc *notifications.Service) *NotificationHandlers {
	return &NotificationHandlers{svc: svc}
}

type notificationDTO struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (h *NotificationHandlers) List(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	var in notifications.ListInput
	q := r.URL.Query()
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, apierror.Invalid("invalid page", map[string]any{"page": "must be a positive integer"}))
			return
		}
		in.Page = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, apierror.Invalid("invalid limit", map[string]any{"limit": "must be a positive integer"}))
			return
		}
		in.Limit = n
	}

	ns, total, err := h.svc.List(r.Context(), u.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dtos := make([]notificationDTO, 0, len(ns))
	for _, n := range ns {
		dtos = append(dtos, notificationDTO{
			ID:        string(n.ID),
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Data:      n.Data,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	page, limit := in.Page, in.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	writePage(w, r, map[string]any{"notifications": dtos}, newMeta(page, limit, total))
}

func (h *NotificationHandlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	n, err := h.svc.UnreadCount(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"unread": n})
}

func (h *NotificationHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	id := domain.NotificationID(chi.URLParam(r, "notificationID"))
	if err := h.svc.MarkRead(r.Context(), u.ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"read": true})
}

func (h *NotificationHandlers) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	updated, err := h.svc.MarkAllRead(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"updated": updated})
}
