package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aquahub-io/aquahub/internal/synchub/core"
	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
)

type fakeService struct {
	statusErr error
	linkErr   error
}

func (s *fakeService) GetStatus(_ context.Context, id string) (*model.AnnotatedStatus, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &model.AnnotatedStatus{
		Device:   &model.DeviceStatus{LevelPercent: 60},
		Category: model.CategoryNormal,
	}, nil
}

func (s *fakeService) ListKnownDevices(context.Context, string) ([]model.DeviceSummary, error) {
	return []model.DeviceSummary{
		{ID: "dev-1", Name: "cistern", Linked: true},
	}, nil
}

func (s *fakeService) LinkDevice(_ context.Context, id, name string) (*model.DeviceSummary, error) {
	if s.linkErr != nil {
		return nil, s.linkErr
	}
	return &model.DeviceSummary{ID: id, Name: name, Linked: true}, nil
}

func (s *fakeService) UnlinkDevice(context.Context, string) error { return nil }

func doRequest(t *testing.T, svc Service, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)
	return rec
}

func TestGetStatusOK(t *testing.T) {
	rec := doRequest(t, &fakeService{}, http.MethodGet, "/v1/devices/dev-1/status", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var st model.AnnotatedStatus
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if st.Category != model.CategoryNormal || st.Device.LevelPercent != 60 {
		t.Errorf("body = %+v, want level 60 NORMAL", st)
	}
}

func TestGetStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no data", core.ErrNoData, http.StatusNotFound},
		{"transport", core.ErrTransport, http.StatusBadGateway},
		{"auth", core.ErrAuthFailed, http.StatusBadGateway},
		{"vendor business", &core.VendorError{Code: 1106, Message: "permission deny"}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, &fakeService{statusErr: tt.err}, http.MethodGet, "/v1/devices/dev-1/status", "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestListDevicesRequiresUID(t *testing.T) {
	rec := doRequest(t, &fakeService{}, http.MethodGet, "/v1/devices", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without uid", rec.Code)
	}

	rec = doRequest(t, &fakeService{}, http.MethodGet, "/v1/devices?uid=u1", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with uid", rec.Code)
	}
}

func TestLinkDevice(t *testing.T) {
	rec := doRequest(t, &fakeService{}, http.MethodPost, "/v1/devices", `{"device_id":"dev-1","name":"tank"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var d model.DeviceSummary
	if err := json.NewDecoder(rec.Body).Decode(&d); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if d.ID != "dev-1" || !d.Linked {
		t.Errorf("body = %+v, want linked dev-1", d)
	}
}

func TestLinkDeviceErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"missing id", `{"name":"x"}`, nil, http.StatusBadRequest},
		{"malformed body", `{`, nil, http.StatusBadRequest},
		{"duplicate", `{"device_id":"dev-1"}`, core.ErrDeviceAlreadyLinked, http.StatusConflict},
		{"vendor rejection", `{"device_id":"ghost"}`, &core.VendorError{Code: 1106, Message: "permission deny"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, &fakeService{linkErr: tt.err}, http.MethodPost, "/v1/devices", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestUnlinkDevice(t *testing.T) {
	rec := doRequest(t, &fakeService{}, http.MethodDelete, "/v1/devices/dev-1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := doRequest(t, &fakeService{}, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
