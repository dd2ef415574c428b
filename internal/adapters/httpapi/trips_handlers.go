package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/nullable"

	"github.com/traveal-app/traveal-api/internal/app/trips"
	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/pkg/apierror"
)

// TripHandlers serves the trip lifecycle endpoints.
type TripHandlers struct {
	svc *trips.Service
}

func NewTripHandlers(svc *trips.Service) *TripHandlers {
	return &TripHandlers{svc: svc}
}

type placeDTO struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   *string `json:"address,omitempty"`
}

type pointDTO struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type tripDTO struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Start          placeDTO   `json:"start"`
	End            *placeDTO  `json:"end,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
	DistanceMeters *float64   `json:"distanceMeters,omitempty"`
	Mode           *string    `json:"mode,omitempty"`
	Purpose        *string    `json:"purpose,omitempty"`
	Companions     int        `json:"companions"`
	Validated      bool       `json:"validated"`
	PointCount     int        `json:"pointCount"`
	Points         []pointDTO `json:"points,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type startTripRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   *string `json:"address"`
}

func (h *TripHandlers) Start(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	var req startTripRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.svc.Start(r.Context(), u.ID, trips.StartInput{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Address:   req.Address,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, map[string]any{"trip": toTripDTO(t, true)})
}

func (h *TripHandlers) Active(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	t, err := h.svc.Active(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"trip": toTripDTO(t, true)})
}

func (h *TripHandlers) Get(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	t, err := h.svc.Get(r.Context(), u.ID, domain.TripID(chi.URLParam(r, "tripID")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"trip": toTripDTO(t, true)})
}

func (h *TripHandlers) List(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	in, err := parseListQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ts, total, err := h.svc.ListCompleted(r.Context(), u.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dtos := make([]tripDTO, 0, len(ts))
	for _, t := range ts {
		dtos = append(dtos, toTripDTO(t, false))
	}
	page, limit := in.Page, in.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	writePage(w, r, map[string]any{"trips": dtos}, newMeta(page, limit, total))
}

type addPointRequest struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy"`
	Speed     *float64  `json:"speed"`
	Altitude  *float64  `json:"altitude"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *TripHandlers) AddPoint(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	var req addPointRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.svc.AddLocationPoint(r.Context(), u.ID, domain.TripID(chi.URLParam(r, "tripID")), trips.PointInput{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Accuracy:  req.Accuracy,
		Speed:     req.Speed,
		Altitude:  req.Altitude,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"recorded": true})
}

type endTripRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   *string `json:"address"`
}

func (h *TripHandlers) End(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	var req endTripRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.svc.End(r.Context(), u.ID, domain.TripID(chi.URLParam(r, "tripID")), trips.EndInput{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Address:   req.Address,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"trip": toTripDTO(t, true)})
}

// validateTripRequest distinguishes absent fields from explicit nulls:
// absent keeps the recorded value, null is rejected, a value corrects it.
type validateTripRequest struct {
	Mode       nullable.Nullable[string] `json:"mode"`
	Purpose    nullable.Nullable[string] `json:"purpose"`
	Companions nullable.Nullable[int]    `json:"companions"`
}

func (h *TripHandlers) Validate(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	var req validateTripRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := toValidateInput(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	t, report, err := h.svc.Validate(r.Context(), u.ID, domain.TripID(chi.URLParam(r, "tripID")), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{
		"trip": toTripDTO(t, false),
		"validation": map[string]any{
			"valid":           report.Valid,
			"durationSeconds": int64(report.Duration.Seconds()),
			"pointCount":      report.PointCount,
			"maxSpeedKmh":     report.MaxSpeedKmh,
			"failures":        report.Failures,
		},
	})
}

func (h *TripHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), u.ID, domain.TripID(chi.URLParam(r, "tripID"))); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"deleted": true})
}

func (h *TripHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	stats, err := h.svc.Stats(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	breakdown := make(map[string]int, len(stats.ModeBreakdown))
	for mode, n := range stats.ModeBreakdown {
		breakdown[string(mode)] = n
	}
	writeData(w, r, http.StatusOK, map[string]any{
		"totalTrips":            stats.TotalTrips,
		"totalDistanceMeters":   stats.TotalDistanceMeters,
		"averageDistanceMeters": stats.AverageDistanceMeters,
		"modeBreakdown":         breakdown,
	})
}

func toValidateInput(req validateTripRequest) (trips.ValidateInput, error) {
	var in trips.ValidateInput
	if req.Mode.IsSpecified() {
		v, err := req.Mode.Get()
		if err != nil {
			return in, apierror.Invalid("invalid mode", map[string]any{"mode": "must not be null"})
		}
		m := domain.TravelMode(v)
		in.Mode = &m
	}
	if req.Purpose.IsSpecified() {
		v, err := req.Purpose.Get()
		if err != nil {
			return in, apierror.Invalid("invalid purpose", map[string]any{"purpose": "must not be null"})
		}
		p := domain.TripPurpose(v)
		in.Purpose = &p
	}
	if req.Companions.IsSpecified() {
		v, err := req.Companions.Get()
		if err != nil {
			return in, apierror.Invalid("invalid companions", map[string]any{"companions": "must not be null"})
		}
		in.Companions = &v
	}
	return in, nil
}

func parseListQuery(r *http.Request) (trips.ListInput, error) {
	q := r.URL.Query()
	var in trips.ListInput

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return in, apierror.Invalid("invalid page", map[string]any{"page": "must be a positive integer"})
		}
		in.Page = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return in, apierror.Invalid("invalid limit", map[string]any{"limit": "must be a positive integer"})
		}
		in.Limit = n
	}
	if raw := q.Get("mode"); raw != "" {
		m := domain.TravelMode(raw)
		in.Mode = &m
	}
	if raw := q.Get("validated"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return in, apierror.Invalid("invalid validated", map[string]any{"validated": "must be true or false"})
		}
		in.Validated = &v
	}
	if raw := q.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return in, apierror.Invalid("invalid from", map[string]any{"from": "must be RFC 3339"})
		}
		in.From = &ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return in, apierror.Invalid("invalid to", map[string]any{"to": "must be RFC 3339"})
		}
		in.To = &ts
	}
	return in, nil
}

func toTripDTO(t domain.Trip, includePoints bool) tripDTO {
	dto := tripDTO{
		ID:     string(t.ID),
		Status: string(t.Status),
		Start: placeDTO{
			Latitude:  t.Start.Latitude,
			Longitude: t.Start.Longitude,
			Address:   t.Start.Address,
		},
		StartedAt:      t.StartedAt,
		EndedAt:        t.EndedAt,
		DistanceMeters: t.DistanceMeters,
		Companions:     t.Companions,
		Validated:      t.Validated,
		PointCount:     len(t.Points),
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if t.End != nil {
		dto.End = &placeDTO{
			Latitude:  t.End.Latitude,
			Longitude: t.End.Longitude,
			Address:   t.End.Address,
		}
	}
	if t.Mode != nil {
		m := string(*t.Mode)
		dto.Mode = &m
	}
	if t.Purpose != nil {
		p := string(*t.Purpose)
		dto.Purpose = &p
	}
	if includePoints {
		dto.Points = make([]pointDTO, 0, len(t.Points))
		for _, pt := range t.Points {
			dto.Points = append(dto.Points, pointDTO{
				Latitude:  pt.Latitude,
				Longitude: pt.Longitude,
				Accuracy:  pt.Accuracy,
				Speed:     pt.Speed,
				Altitude:  pt.Altitude,
				Timestamp: pt.Timestamp,
			})
		}
	}
	return dto
}
