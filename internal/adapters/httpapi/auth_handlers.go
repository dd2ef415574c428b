package httpapi

import (
	"net/http"
	"time"

	"github.com/traveal-app/traveal-api/internal/app/auth"
	"github.com/traveal-app/traveal-api/internal/app/authz"
	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/platform/auth/tokens"
)

// AuthHandlers serves registration, login, token refresh, and the
// authenticated user's account surface.
type AuthHandlers struct {
	svc  *auth.Service
	gate *authz.Gate
}

func NewAuthHandlers(svc *auth.Service, gate *authz.Gate) *AuthHandlers {
	return &AuthHandlers{svc: svc, gate: gate}
}

type registerRequest struct {
	DeviceID string             `json:"deviceId"`
	Consent  domain.ConsentData `json:"consent"`
}

type loginRequest struct {
	DeviceID string `json:"deviceId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userDTO struct {
	ID          string             `json:"id"`
	DeviceID    *string            `json:"deviceId,omitempty"`
	Onboarded   bool               `json:"onboarded"`
	Consent     domain.ConsentData `json:"consent"`
	Preferences map[string]any     `json:"preferences"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type tokensDTO struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type sessionDTO struct {
	User   userDTO   `json:"user"`
	Tokens tokensDTO `json:"tokens"`
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := authz.ValidateDeviceID(req.DeviceID); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.svc.Register(r.Context(), req.DeviceID, req.Consent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, toSessionDTO(session))
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := authz.ValidateDeviceID(req.DeviceID); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.svc.Login(r.Context(), req.DeviceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toSessionDTO(session))
}

func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"tokens": toTokensDTO(pair)})
}

// Status reports whether the caller's token resolves to a user. It never
// fails; an unauthenticated caller just sees authenticated=false.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	u := h.gate.OptionalAuthenticate(r.Context(), r.Header.Get("Authorization"))
	body := map[string]any{"authenticated": u != nil}
	if u != nil {
		body["onboarded"] = u.Onboarded
	}
	writeData(w, r, http.StatusOK, body)
}

func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	profile, err := h.svc.Me(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{
		"user": toUserDTO(profile.User),
		"stats": map[string]any{
			"totalTrips":          profile.Stats.TotalTrips,
			"unreadNotifications": profile.Stats.UnreadNotifications,
		},
	})
}

type consentRequest struct {
	Consent domain.ConsentData `json:"consent"`
}

func (h *AuthHandlers) UpdateConsent(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	var req consentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.svc.UpdateConsent(r.Context(), u.ID, req.Consent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"user": toUserDTO(updated)})
}

type preferencesRequest struct {
	Preferences map[string]any `json:"preferences"`
}

func (h *AuthHandlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	var req preferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.svc.UpdatePreferences(r.Context(), u.ID, req.Preferences)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"user": toUserDTO(updated)})
}

func (h *AuthHandlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	if err := h.svc.DeleteAccount(r.Context(), u.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"deleted": true})
}

func toSessionDTO(s auth.Session) sessionDTO {
	return sessionDTO{
		User:   toUserDTO(s.User),
		Tokens: toTokensDTO(s.Tokens),
	}
}

func toUserDTO(u domain.User) userDTO {
	return userDTO{
		ID:          u.UUID,
		DeviceID:    u.DeviceID,
		Onboarded:   u.Onboarded,
		Consent:     u.Consent,
		Preferences: u.Preferences,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func toTokensDTO(p tokens.Pair) tokensDTO {
	return tokensDTO{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    p.ExpiresIn,
	}
}
