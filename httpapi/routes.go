package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	authmw "github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/principal"
)

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("authcore: health check failed", "error", err)
		writeProblem(w, http.StatusServiceUnavailable, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) issued(w http.ResponseWriter, r *http.Request, status int, resp *authcore.AuthResponse) {
	h.setRefreshCookie(w, r, resp.RefreshToken)
	writeJSON(w, status, resp)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeProblem(w, http.StatusUnauthorized, msgInvalidLogin)
		return
	}

	resp, err := h.service.Login(r.Context(), req.Username, req.Password, h.requestContext(r, req.DeviceInfo))
	if err != nil {
		h.writeError(w, r, err, msgInvalidLogin)
		return
	}
	h.issued(w, r, http.StatusOK, resp)
}

func (h *Handler) loginExternal(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.Header.Get(h.cfg.ExternalIdentityHeader))
	if identity == "" {
		writeProblem(w, http.StatusUnauthorized, "no external identity asserted")
		return
	}
	var req externalLoginRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	resp, err := h.service.LoginExternal(r.Context(), identity, req.Domain, h.requestContext(r, req.DeviceInfo))
	if err != nil {
		h.writeError(w, r, err, "external identity rejected")
		return
	}
	h.issued(w, r, http.StatusOK, resp)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), authcore.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Secret:   req.Password,
	}, h.requestContext(r, req.DeviceInfo))
	if err != nil {
		h.writeError(w, r, err, "invalid request")
		return
	}
	h.issued(w, r, http.StatusCreated, resp)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	token := refreshTokenFrom(r, req.RefreshToken)
	if token == "" {
		writeProblem(w, http.StatusBadRequest, "refresh token required")
		return
	}

	resp, err := h.service.Refresh(r.Context(), token, h.requestContext(r, req.DeviceInfo))
	if err != nil {
		if !errorsIsStore(err) {
			clearRefreshCookie(w, r)
		}
		h.writeError(w, r, err, msgInvalidRefresh)
		return
	}
	h.issued(w, r, http.StatusOK, resp)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	token := refreshTokenFrom(r, req.RefreshToken)
	if token == "" {
		writeProblem(w, http.StatusBadRequest, "refresh token required")
		return
	}

	if err := h.service.Revoke(r.Context(), token, req.Reason, h.requestContext(r, "")); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// logout is idempotent: an unknown token still clears the cookie.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	token := refreshTokenFrom(r, req.RefreshToken)
	if token == "" {
		writeProblem(w, http.StatusBadRequest, "refresh token required")
		return
	}

	err := h.service.Logout(r.Context(), token, h.requestContext(r, ""))
	if err != nil && !errorsIsNotFound(err) {
		h.writeError(w, r, err, "")
		return
	}
	clearRefreshCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	res, _ := authmw.ValidationFromContext(r.Context())
	out, err := h.service.RevokeAll(r.Context(), res.PrincipalID, "", h.requestContext(r, ""))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	clearRefreshCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]any{
		"revoked_tokens":       out.RevokedTokens,
		"deactivated_sessions": out.DeactivatedSessions,
	})
}

type validateResponse struct {
	Valid        bool     `json:"valid"`
	PrincipalID  int64    `json:"principal_id"`
	Permissions  uint64   `json:"permissions"`
	AuthType     string   `json:"auth_type"`
	TokenVersion int64    `json:"token_version"`
	TokenID      string   `json:"token_id"`
	SessionID    string   `json:"session_id,omitempty"`
	ExpiresAt    string   `json:"expires_at"`
	Names        []string `json:"permission_names,omitempty"`
	Name         string   `json:"name,omitempty"`
}

func toValidateResponse(res *authcore.ValidationResult) validateResponse {
	return validateResponse{
		Valid:        res.IsValid,
		PrincipalID:  res.PrincipalID,
		Permissions:  res.Permissions.Raw(),
		AuthType:     res.AuthType.String(),
		TokenVersion: res.TokenVersion,
		TokenID:      res.TokenID,
		SessionID:    res.SessionID,
		ExpiresAt:    res.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	res, _ := authmw.ValidationFromContext(r.Context())
	writeJSON(w, http.StatusOK, toValidateResponse(res))
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	res, _ := authmw.ValidationFromContext(r.Context())
	out := toValidateResponse(res)
	out.Name = res.Name
	out.Names = permission.NamesOf(res.Permissions)
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) changePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req permissionsRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	mask, err := permission.ParseList(req.Permissions)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "unknown permission name")
		return
	}

	version, err := h.service.ChangePermissions(r.Context(), id, mask, h.requestContext(r, ""))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"permissions":      mask.Raw(),
		"permission_names": permission.NamesOf(mask),
		"token_version":    version,
	})
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	if err := h.service.SetActive(r.Context(), id, *req.Active, h.requestContext(r, "")); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var authType principal.AuthType
	if raw := r.URL.Query().Get("auth_type"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 8)
		if err != nil || (n != 0 && !principal.AuthType(n).Valid()) {
			writeProblem(w, http.StatusBadRequest, "invalid auth_type")
			return
		}
		authType = principal.AuthType(n)
	}

	list, err := h.service.ActiveSessions(r.Context(), id, authType)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	type sessionView struct {
		ID           string    `json:"id"`
		IP           string    `json:"ip,omitempty"`
		UserAgent    string    `json:"user_agent,omitempty"`
		DeviceInfo   string    `json:"device_info,omitempty"`
		AuthType     string    `json:"auth_type"`
		CreatedAt    time.Time `json:"created_at"`
		LastAccessAt time.Time `json:"last_access_at"`
	}
	views := make([]sessionView, 0, len(list))
	for _, s := range list {
		views = append(views, sessionView{
			ID:           s.ID,
			IP:           s.IP,
			UserAgent:    s.UserAgent,
			DeviceInfo:   s.DeviceInfo,
			AuthType:     principal.AuthType(s.AuthType).String(),
			CreatedAt:    s.CreatedAt,
			LastAccessAt: s.LastAccessAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(views), "sessions": views})
}
