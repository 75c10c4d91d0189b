package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/plantpass/internal/domain/auth"
)

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token                  string `json:"token"`
	RequiresPasswordChange bool   `json:"requires_password_change"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	res, err := h.auth.Login(r.Context(), req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, authError{Error: "Invalid password"})
	case err != nil:
		internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, loginResponse(res))
	}
}

type changePasswordRequest struct {
	Current string `json:"old_password"`
	Next    string `json:"new_password"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	claims, _ := auth.ClaimsFrom(r.Context())
	err := h.auth.ChangePassword(r.Context(), claims, req.Current, req.Next)
	switch {
	case errors.Is(err, auth.ErrPasswordRequired):
		writeJSON(w, http.StatusBadRequest, authError{Error: "New password is required"})
	case errors.Is(err, auth.ErrInvalidCurrentPassword):
		writeJSON(w, http.StatusUnauthorized, authError{Error: "Invalid current password"})
	case err != nil:
		internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.ForgotPassword(r.Context()); err != nil {
		zctx.From(r.Context()).Error("Password reset failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, authError{Error: "Failed to send email"})
		return
	}
	writeMessage(w, http.StatusOK, "Temporary password sent to registered email")
}

type passphraseRequest struct {
	Passphrase *string `json:"passphrase"`
}

type passphraseResponse struct {
	Passphrase string `json:"passphrase"`
}

// readPassphrase decodes a passphrase body, answering 400 when it is
// missing or not a string.
func readPassphrase(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req passphraseRequest
	if err := decode(w, r, &req); err != nil {
		if isTypeError(err) {
			writeMessage(w, http.StatusBadRequest, "Passphrase must be a string")
			return "", false
		}
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return "", false
	}
	if req.Passphrase == nil || *req.Passphrase == "" {
		writeMessage(w, http.StatusBadRequest, "Passphrase is required")
		return "", false
	}
	return *req.Passphrase, true
}

func (h *Handler) getPassphrase(w http.ResponseWriter, r *http.Request) {
	p, err := h.auth.Passphrase(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, passphraseResponse{Passphrase: p})
}

func (h *Handler) putPassphrase(w http.ResponseWriter, r *http.Request) {
	p, ok := readPassphrase(w, r)
	if !ok {
		return
	}
	if err := h.auth.SetPassphrase(r.Context(), p); err != nil {
		internalError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Passphrase updated successfully")
}

type verifyResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

func (h *Handler) verifyPassphrase(w http.ResponseWriter, r *http.Request) {
	p, ok := readPassphrase(w, r)
	if !ok {
		return
	}
	token, err := h.auth.VerifyPassphrase(r.Context(), p)
	switch {
	case errors.Is(err, auth.ErrIncorrectPassphrase):
		writeMessage(w, http.StatusUnauthorized, "Incorrect passphrase")
	case err != nil:
		internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, verifyResponse{Message: "Passphrase verified", Token: token})
	}
}
