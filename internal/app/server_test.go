package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/locator/internal/location"
	"github.com/relabs-tech/locator/internal/platform"
)

// MockBroker is a mock implementation of platform.Broker
type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Subscribe(topic string, h platform.Handler) error {
	return m.Called(topic).Error(0)
}

func (m *MockBroker) Publish(topic string, retained bool, payload []byte) error {
	return m.Called(topic, retained, payload).Error(0)
}

func newTestServer(t *testing.T, sim *platform.Sim, broker *MockBroker) *httptest.Server {
	t.Helper()
	acq := location.NewAcquirer(sim, location.Options{
		ProbeTimeout:   200 * time.Millisecond,
		AttemptTimeout: 300 * time.Millisecond,
	})
	opts := ServerOptions{Answer: sim.SetPermission}
	if broker != nil {
		opts.Broker = broker
		opts.ResultTopic = "locator/result"
	}
	ts := httptest.NewServer(NewServer(acq, sim, opts).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func cachedSim() *platform.Sim {
	sim := platform.NewSim(nil)
	sim.SetPermission(location.GrantedPrecise)
	sim.SetLastKnown(location.ProviderGPS, location.Fix{
		Latitude: 41.39, Longitude: 2.17, Accuracy: 7,
		Speed: location.Unknown, Bearing: location.Unknown,
		Timestamp: time.Now().Add(-3 * time.Second).UnixMilli(),
	})
	return sim
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestGetLocation(t *testing.T) {
	t.Run("Cached fix", func(t *testing.T) {
		broker := new(MockBroker)
		broker.On("Publish", "locator/result", true, mock.Anything).Return(nil).Once()
		ts := newTestServer(t, cachedSim(), broker)

		var got map[string]any
		getJSON(t, ts.URL+"/api/location", &got)

		assert.Equal(t, 41.39, got["latitude"])
		assert.Equal(t, 2.17, got["longitude"])
		assert.Equal(t, "gps", got["provider"])
		assert.Equal(t, 0.0, got["speed"])
		assert.Nil(t, got["altitude"])
		assert.InDelta(t, 3, got["age_seconds"], 1)
		broker.AssertExpectations(t)
	})

	t.Run("Denied returns null", func(t *testing.T) {
		sim := platform.NewSim(nil)
		sim.SetPermission(location.Denied)
		broker := new(MockBroker)
		broker.On("Publish", "locator/result", true, []byte("null")).Return(nil).Once()
		ts := newTestServer(t, sim, broker)

		resp, err := http.Get(ts.URL + "/api/location")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body json.RawMessage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "null", string(body))
		broker.AssertExpectations(t)
	})

	t.Run("Silent provider times out", func(t *testing.T) {
		sim := platform.NewSim(nil)
		sim.SetPermission(location.GrantedCoarse)
		ts := newTestServer(t, sim, nil)

		var got map[string]any
		getJSON(t, ts.URL+"/api/location", &got)
		assert.Nil(t, got)
		assert.Equal(t, 0, sim.LiveListeners())
	})
}

func TestPermissionRoutes(t *testing.T) {
	sim := platform.NewSim(nil)
	ts := newTestServer(t, sim, nil)

	var info PermissionInfo
	getJSON(t, ts.URL+"/api/permission", &info)
	assert.Equal(t, "not_determined", info.Status)
	assert.True(t, info.LocationServicesEnabled)
	assert.False(t, info.HasWhenInUsePermission)

	resp, err := http.Post(ts.URL+"/api/permission/request", "application/json", nil)
	require.NoError(t, err)
	var req PermissionRequestInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&req))
	resp.Body.Close()
	assert.True(t, req.CanRequestPermission)
	assert.Equal(t, 1, sim.Prompts())

	resp, err = http.Post(ts.URL+"/api/permission", "application/json", strings.NewReader(`{"status":"granted_approximate"}`))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()
	assert.Equal(t, "granted_approximate", info.Status)
	assert.True(t, info.HasApproximatePermission)
	assert.False(t, info.HasPrecisePermission)
	assert.True(t, info.HasWhenInUsePermission)

	resp, err = http.Post(ts.URL+"/api/permission", "application/json", strings.NewReader(`{"status":"always"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequestPermissionStates(t *testing.T) {
	tests := []struct {
		status     location.PermissionStatus
		canRequest bool
		message    string
		prompts    int
	}{
		{location.NotDetermined, true, "Location permission requested", 1},
		{location.GrantedCoarse, true, "Location permission already granted", 0},
		{location.GrantedPrecise, false, "Location permission already granted", 0},
		{location.Denied, false, "Location permission denied. Please enable in Settings.", 0},
		{location.Restricted, false, "Location permission denied. Please enable in Settings.", 0},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			sim := platform.NewSim(nil)
			sim.SetPermission(tt.status)
			acq := location.NewAcquirer(sim, location.Options{})

			info := NewServer(acq, sim, ServerOptions{}).RequestLocationPermission()
			assert.Equal(t, tt.status.String(), info.Status)
			assert.Equal(t, tt.canRequest, info.CanRequestPermission)
			assert.Equal(t, tt.message, info.Message)
			assert.Equal(t, tt.prompts, sim.Prompts())
		})
	}
}

func TestWebsocketActions(t *testing.T) {
	ts := newTestServer(t, cachedSim(), nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() map[string]any {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var resp map[string]any
		require.NoError(t, conn.ReadJSON(&resp))
		return resp
	}

	require.NoError(t, conn.WriteJSON(WSMessage{Action: "checkLocationPermission"}))
	resp := read()
	assert.Equal(t, "checkLocationPermission", resp["type"])
	data := resp["data"].(map[string]any)
	assert.Equal(t, "granted_precise", data["status"])
	assert.Equal(t, true, data["hasPrecisePermission"])

	require.NoError(t, conn.WriteJSON(WSMessage{Action: "getLocation"}))
	resp = read()
	assert.Equal(t, "getLocation", resp["type"])
	data = resp["data"].(map[string]any)
	assert.Equal(t, "gps", data["provider"])

	require.NoError(t, conn.WriteJSON(WSMessage{Action: "requestLocationPermission"}))
	resp = read()
	assert.Equal(t, "requestLocationPermission", resp["type"])
	data = resp["data"].(map[string]any)
	assert.Equal(t, false, data["canRequestPermission"])

	require.NoError(t, conn.WriteJSON(WSMessage{Action: "reboot"}))
	resp = read()
	assert.Equal(t, "error", resp["type"])
	assert.Contains(t, resp["message"], "reboot")
}
