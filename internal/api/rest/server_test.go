package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jebisys/switchboard/internal/api/websocket"
	"github.com/jebisys/switchboard/internal/auth"
	"github.com/jebisys/switchboard/internal/config"
	"github.com/jebisys/switchboard/internal/configfiles"
	"github.com/jebisys/switchboard/internal/device"
	"github.com/jebisys/switchboard/internal/reconcile"
	"github.com/jebisys/switchboard/internal/schedule"
	"github.com/jebisys/switchboard/internal/storage"
	"github.com/jebisys/switchboard/internal/systemd"
	"github.com/jebisys/switchboard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubDriver is always in simulated-success mode unless failToggle is set.
type stubDriver struct {
	devices    []string
	state      map[string]device.Status
	failToggle bool
}

func (d *stubDriver) Devices() []string { return d.devices }

func (d *stubDriver) ReadStatus(_ context.Context, deviceID string) (device.StateReading, error) {
	if !d.known(deviceID) {
		err := types.NewValidationError("device", "invalid device id")
		return device.StateReading{Status: device.StatusError}, err
	}
	status, ok := d.state[deviceID]
	if !ok {
		status = device.StatusOff
	}
	return device.StateReading{Status: status, Simulated: true}, nil
}

func (d *stubDriver) SetState(_ context.Context, deviceID string, action device.Action) (device.ToggleResult, error) {
	if !d.known(deviceID) {
		err := types.NewValidationError("device", "invalid device id")
		return device.ToggleResult{}, err
	}
	if d.failToggle {
		err := &types.DeviceError{DeviceID: deviceID, Message: "write failed"}
		return device.ToggleResult{Success: false, Message: "write failed"}, err
	}
	if action == device.ActionOn {
		d.state[deviceID] = device.StatusOn
	} else {
		d.state[deviceID] = device.StatusOff
	}
	return device.ToggleResult{Success: true, Message: "ok", Simulated: true}, nil
}

func (d *stubDriver) known(id string) bool {
	for _, v := range d.devices {
		if v == id {
			return true
		}
	}
	return false
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zap.NewNop()

	store, err := storage.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	authCfg := config.AuthConfig{
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    24 * time.Hour,
		LegacySalt:         "jebi_salt_2025",
		LoginMaxAttempts:   5,
		LoginAttemptWindow: time.Minute,
	}
	authService := auth.NewAuthService(store, authCfg, logger)
	require.NoError(t, authService.EnsureDefaultUser(context.Background(), "operator", "changeme"))

	driver := &stubDriver{
		devices: []string{"RelayLight", "RelayScreen"},
		state:   map[string]device.Status{},
	}
	reconciler := reconcile.NewReconciler(store, driver, schedule.Policy{}, logger)
	services := systemd.NewManager(config.SystemdConfig{
		AllowedServices: []string{"kiosk.service"},
		CommandTimeout:  time.Second,
	}, logger)

	dir := t.TempDir()
	editor := configfiles.NewEditor(filepath.Join(dir, "device_map.json"), logger)
	logBrowser := configfiles.NewLogBrowser(filepath.Join(dir, "logs"))

	hub := websocket.NewHub(logger, authService)
	go hub.Run()

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Auth:   authCfg,
	}
	return NewServer(cfg, Deps{
		AuthService: authService,
		Store:       store,
		Driver:      driver,
		Reconciler:  reconciler,
		Services:    services,
		Editor:      editor,
		LogBrowser:  logBrowser,
		WSHub:       hub,
	}, logger)
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func loginToken(t *testing.T, s *Server) string {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{
		Username: "operator",
		Password: "changeme",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRelaysRequireAuth(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/relays", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/relays", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginAndListRelays(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	w := doJSON(t, s, http.MethodGet, "/api/v1/relays", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Relays []RelayStatusResponse `json:"relays"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Relays, 2)
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{
		Username: "operator",
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRateLimitReturns429(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 5; i++ {
		doJSON(t, s, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "operator", Password: "wrong"})
	}
	w := doJSON(t, s, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "operator", Password: "changeme"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestToggleRelay(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	w := doJSON(t, s, http.MethodPost, "/api/v1/relays/RelayLight/toggle", token, ToggleRequest{Action: "on"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Activation was recorded with user attribution.
	events, err := s.store.ListActivations(context.Background(), storage.ActivationFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "RelayLight", events[0].DeviceID)
	assert.False(t, events[0].IsAutomatic)
	require.NotNil(t, events[0].Username)
	assert.Equal(t, "operator", *events[0].Username)
}

func TestToggleRelayHardwareFailure(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)
	s.driver.(*stubDriver).failToggle = true

	w := doJSON(t, s, http.MethodPost, "/api/v1/relays/RelayLight/toggle", token, ToggleRequest{Action: "on"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// The failed attempt is still recorded.
	events, err := s.store.ListActivations(context.Background(), storage.ActivationFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
}

func TestToggleRelayBadInput(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	w := doJSON(t, s, http.MethodPost, "/api/v1/relays/RelayLight/toggle", token, ToggleRequest{Action: "blink"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/relays/RelayGhost/toggle", token, ToggleRequest{Action: "on"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleCRUD(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	w := doJSON(t, s, http.MethodPut, "/api/v1/schedules/RelayLight", token, SaveScheduleRequest{
		StartTime: "08:00", EndTime: "18:00", Days: []string{"mon", "fri"}, Enabled: true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, s, http.MethodGet, "/api/v1/schedules/RelayLight", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sched ScheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sched))
	assert.ElementsMatch(t, []string{"mon", "fri"}, sched.Days)

	enabled := false
	w = doJSON(t, s, http.MethodPatch, "/api/v1/schedules/RelayLight/enabled", token, SetEnabledRequest{Enabled: &enabled})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodDelete, "/api/v1/schedules/RelayLight", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/schedules/RelayLight", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleValidation(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	bad := []SaveScheduleRequest{
		{StartTime: "8:00", EndTime: "18:00", Days: []string{"mon"}},
		{StartTime: "18:00", EndTime: "08:00", Days: []string{"mon"}},
		{StartTime: "08:00", EndTime: "18:00", Days: []string{"monday"}},
	}
	for i, req := range bad {
		w := doJSON(t, s, http.MethodPut, "/api/v1/schedules/RelayLight", token, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "case %d: %s", i, w.Body.String())
	}
}

func TestAnalyticsSummary(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	s.store.LogActivation(context.Background(), "RelayLight", "on", nil, nil, true, true)
	s.store.LogActivation(context.Background(), "RelayLight", "off", nil, nil, false, true)

	w := doJSON(t, s, http.MethodGet, "/api/v1/analytics/summary?time_range=24h", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Devices []DeviceSummary `json:"devices"`
		Total   int             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	require.NotEmpty(t, resp.Devices)
	assert.Equal(t, 1, resp.Devices[0].Automatic)
	assert.Equal(t, 1, resp.Devices[0].Manual)

	w = doJSON(t, s, http.MethodGet, "/api/v1/analytics/summary?time_range=2y", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActivationChartSeries(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	operator := "operator"
	s.store.LogActivation(context.Background(), "RelayLight", "on", nil, &operator, false, true)
	s.store.LogActivation(context.Background(), "RelayLight", "off", nil, nil, true, true)
	s.store.LogActivation(context.Background(), "RelayScreen", "on", nil, nil, true, false)

	w := doJSON(t, s, http.MethodGet, "/api/v1/analytics/activations?time_range=1h", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		TimeRange string `json:"time_range"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Count     int    `json:"count"`
		Data      struct {
			Components  []string                 `json:"components"`
			Activations map[string]*DeviceSeries `json:"activations"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1h", resp.TimeRange)
	assert.Equal(t, 3, resp.Count)
	assert.ElementsMatch(t, []string{"RelayLight", "RelayScreen"}, resp.Data.Components)

	light := resp.Data.Activations["RelayLight"]
	require.NotNil(t, light)
	require.Len(t, light.Manual, 1)
	require.Len(t, light.Automatic, 1)
	assert.Equal(t, "operator", light.Manual[0].Username)
	assert.Equal(t, "Schedule", light.Automatic[0].Username)
	_, err := time.Parse(time.RFC3339, light.Manual[0].X)
	assert.NoError(t, err)

	screen := resp.Data.Activations["RelayScreen"]
	require.NotNil(t, screen)
	require.Len(t, screen.Automatic, 1)
	assert.False(t, screen.Automatic[0].Success)

	// Device filter narrows the series.
	w = doJSON(t, s, http.MethodGet, "/api/v1/analytics/activations?time_range=1h&device_id=RelayScreen", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"RelayScreen"}, resp.Data.Components)

	w = doJSON(t, s, http.MethodGet, "/api/v1/analytics/activations?time_range=2y", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeviceTimeEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	w := doJSON(t, s, http.MethodGet, "/api/v1/relays/time", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Time     string `json:"time"`
		Unix     int64  `json:"unix"`
		Timezone string `json:"timezone"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	reported, err := time.Parse(time.RFC3339, resp.Time)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), reported, time.Minute)
	assert.NotZero(t, resp.Unix)

	w = doJSON(t, s, http.MethodGet, "/api/v1/relays/time", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginReportsConfiguredTokenTTL(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{
		Username: "operator",
		Password: "changeme",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// Fixture configures a one hour access token TTL.
	assert.Equal(t, 3600, resp.ExpiresIn)
}

func TestServiceEndpointsValidate(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	w := doJSON(t, s, http.MethodGet, "/api/v1/services/sshd.service", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/services/kiosk.service/control", token, ServiceControlRequest{Action: "mask"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeviceMapEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	w := doJSON(t, s, http.MethodGet, "/api/v1/config/device-map", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPut, "/api/v1/config/device-map", token, map[string]any{"bogus": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPut, "/api/v1/config/device-map", token, map[string]any{
		"devices": []any{map[string]any{"id": "RelayLight", "label": "Light"}},
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLogEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	w := doJSON(t, s, http.MethodGet, "/api/v1/logs", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/logs/absent.log/download", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/logs/%s/download", "..%2Fetc%2Fpasswd"), token, nil)
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "operator", Password: "changeme"})
	require.Equal(t, http.StatusOK, w.Code)
	var login LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = doJSON(t, s, http.MethodPost, "/api/v1/auth/refresh", "", RefreshRequest{RefreshToken: login.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	var refreshed LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))

	w = doJSON(t, s, http.MethodPost, "/api/v1/auth/logout", refreshed.AccessToken, RefreshRequest{RefreshToken: refreshed.RefreshToken})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/auth/refresh", "", RefreshRequest{RefreshToken: refreshed.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
