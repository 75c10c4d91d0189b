package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/plantpass/internal/domain/settings"
)

func (h *Handler) getToggles(w http.ResponseWriter, r *http.Request) {
	t, err := h.settings.Toggles(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type togglesRequest struct {
	CollectEmailAddresses  *bool `json:"collectEmailAddresses"`
	PasswordProtectAdmin   *bool `json:"passwordProtectAdmin"`
	ProtectPlantPassAccess *bool `json:"protectPlantPassAccess"`
}

type togglesResponse struct {
	settings.Toggles
	Message string `json:"message"`
}

func (h *Handler) putToggles(w http.ResponseWriter, r *http.Request) {
	var req togglesRequest
	if err := decode(w, r, &req); err != nil {
		if isTypeError(err) {
			writeMessage(w, http.StatusBadRequest, "Feature toggle values must be boolean")
			return
		}
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.CollectEmailAddresses == nil || req.PasswordProtectAdmin == nil || req.ProtectPlantPassAccess == nil {
		writeMessage(w, http.StatusBadRequest, "All feature toggle fields are required")
		return
	}
	t := settings.Toggles{
		CollectEmailAddresses:  *req.CollectEmailAddresses,
		PasswordProtectAdmin:   *req.PasswordProtectAdmin,
		ProtectPlantPassAccess: *req.ProtectPlantPassAccess,
	}
	if err := h.settings.SetToggles(r.Context(), t); err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, togglesResponse{Toggles: t, Message: "Feature toggles updated successfully"})
}

type lockResponse struct {
	ResourceType settings.Resource `json:"resourceType"`
	IsLocked     bool              `json:"isLocked"`
	Message      string            `json:"message,omitempty"`
}

// resource parses the resourceType path value, answering 400 when invalid.
func resource(w http.ResponseWriter, r *http.Request) (settings.Resource, bool) {
	res, err := settings.ParseResource(r.PathValue("resourceType"))
	if err != nil {
		var invalid *settings.InvalidResourceError
		if errors.As(err, &invalid) {
			writeMessage(w, http.StatusBadRequest, invalid.Error())
		} else {
			internalError(w, r, err)
		}
		return "", false
	}
	return res, true
}

func (h *Handler) getLock(w http.ResponseWriter, r *http.Request) {
	res, ok := resource(w, r)
	if !ok {
		return
	}
	locked, err := h.settings.Locked(r.Context(), res)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lockResponse{ResourceType: res, IsLocked: locked})
}

func (h *Handler) putLock(w http.ResponseWriter, r *http.Request) {
	res, ok := resource(w, r)
	if !ok {
		return
	}
	var req struct {
		IsLocked *bool `json:"isLocked"`
	}
	if err := decode(w, r, &req); err != nil {
		if isTypeError(err) {
			writeMessage(w, http.StatusBadRequest, "isLocked must be a boolean")
			return
		}
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.IsLocked == nil {
		writeMessage(w, http.StatusBadRequest, "isLocked field is required")
		return
	}
	if err := h.settings.SetLocked(r.Context(), res, *req.IsLocked); err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lockResponse{
		ResourceType: res,
		IsLocked:     *req.IsLocked,
		Message:      "Lock state updated successfully",
	})
}
