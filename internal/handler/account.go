package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/flatmate/internal/middleware"
	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/service"
	"github.com/dukerupert/flatmate/internal/websocket"
)

type AccountHandler struct {
	accounts      *service.AccountService
	hub           *websocket.Hub
	secureCookies bool
	logger        *slog.Logger
}

func NewAccountHandler(accounts *service.AccountService, hub *websocket.Hub, secureCookies bool, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, hub: hub, secureCookies: secureCookies, logger: logger}
}

type authResponse struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	creds, err := h.accounts.Register(req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setSessionCookie(w, r, creds.Session)
	writeJSON(w, http.StatusCreated, authResponse{User: creds.User, Token: creds.Token, ExpiresAt: creds.ExpiresAt})
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	creds, err := h.accounts.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setSessionCookie(w, r, creds.Session)
	writeJSON(w, http.StatusOK, authResponse{User: creds.User, Token: creds.Token, ExpiresAt: creds.ExpiresAt})
}

func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.accounts.Logout(me); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.clearSessionCookie(w, r)
	writeMessage(w, "Logged out")
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, err := h.accounts.Profile(me)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AccountHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var patch service.ProfilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.accounts.UpdateProfile(me, patch)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.accounts.ChangePassword(me, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "Password updated")
}

// DeleteMe removes the account. Sockets of houses that went with it are
// closed, and the user's sockets in the houses they only belonged to are
// dropped.
func (h *AccountHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req deleteAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.accounts.DeleteAccount(me, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	for _, houseID := range result.DeletedHouses {
		h.hub.Broadcast(houseID, websocket.NewMessage("house", "deleted", houseID, nil))
		h.hub.CloseHouse(houseID)
	}
	for _, houseID := range result.LeftHouses {
		h.hub.DropUser(houseID, me.UserID)
		h.hub.Broadcast(houseID, websocket.NewMessage("member", "left", me.UserID, nil))
	}

	h.clearSessionCookie(w, r)
	writeMessage(w, "Account deleted")
}

func (h *AccountHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookies || r.TLS != nil,
	})
}

func (h *AccountHandler) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookies || r.TLS != nil,
	})
}
