package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aquahub-io/aquahub/internal/synchub/core"
	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
	"github.com/aquahub-io/aquahub/pkg/log"
)

// Service is the slice of the core service the API exposes.
type Service interface {
	GetStatus(ctx context.Context, deviceID string) (*model.AnnotatedStatus, error)
	ListKnownDevices(ctx context.Context, uid string) ([]model.DeviceSummary, error)
	LinkDevice(ctx context.Context, deviceID, name string) (*model.DeviceSummary, error)
	UnlinkDevice(ctx context.Context, deviceID string) error
}

type handler struct {
	svc    Service
	logger log.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

type linkRequest struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
}

func (h *handler) getStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	st, err := h.svc.GetStatus(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

func (h *handler) listDevices(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "uid query parameter is required"})
		return
	}

	devs, err := h.svc.ListKnownDevices(r.Context(), uid)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}
	h.writeJSON(w, http.StatusOK, devs)
}

func (h *handler) linkDevice(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.DeviceID == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "device_id is required"})
		return
	}

	d, err := h.svc.LinkDevice(r.Context(), req.DeviceID, req.Name)
	if err != nil {
		// a vendor rejection here means the submitted id is unusable,
		// which is the caller's problem rather than the upstream's
		h.writeError(w, r, err, http.StatusUnprocessableEntity)
		return
	}
	h.writeJSON(w, http.StatusCreated, d)
}

func (h *handler) unlinkDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.svc.UnlinkDevice(r.Context(), id); err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps core errors to HTTP statuses. vendorStatus is used for
// *core.VendorError, which reads differently per operation.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error, vendorStatus int) {
	var verr *core.VendorError

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNoData), errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrDeviceAlreadyLinked):
		status = http.StatusConflict
	case errors.As(err, &verr):
		status = vendorStatus
	case errors.Is(err, core.ErrAuthFailed), errors.Is(err, core.ErrTransport):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(err, "request failed", "method", r.Method, "path", r.URL.Path)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error(err, "write response")
	}
}
