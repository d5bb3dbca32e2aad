package platform

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/locator/internal/location"
	"github.com/relabs-tech/locator/internal/store"
)

// MockBroker records subscriptions so tests can inject messages.
type MockBroker struct {
	mock.Mock
	handlers map[string]Handler
}

func (m *MockBroker) Subscribe(topic string, h Handler) error {
	if m.handlers == nil {
		m.handlers = make(map[string]Handler)
	}
	m.handlers[topic] = h
	return m.Called(topic).Error(0)
}

func (m *MockBroker) Publish(topic string, retained bool, payload []byte) error {
	return m.Called(topic, retained, payload).Error(0)
}

func (m *MockBroker) deliver(subscribed, topic, payload string) {
	m.handlers[subscribed](topic, []byte(payload))
}

var testTopics = DeviceTopics{
	GPSFix:           "locator/fix/gps",
	NetworkFix:       "locator/fix/network",
	ProviderStatus:   "locator/provider",
	Permission:       "locator/permission",
	PermissionPrompt: "locator/permission/prompt",
}

func newTestDevice(t *testing.T, initial location.PermissionStatus) (*Device, *MockBroker) {
	t.Helper()
	b := new(MockBroker)
	b.On("Subscribe", mock.Anything).Return(nil)
	d, err := NewDevice(b, testTopics, store.NewMemory(), initial, true)
	require.NoError(t, err)
	return d, b
}

func TestNewDeviceSubscribesTopics(t *testing.T) {
	_, b := newTestDevice(t, location.NotDetermined)
	b.AssertCalled(t, "Subscribe", "locator/fix/gps")
	b.AssertCalled(t, "Subscribe", "locator/fix/network")
	b.AssertCalled(t, "Subscribe", "locator/provider/+")
	b.AssertCalled(t, "Subscribe", "locator/permission")
}

func TestNewDeviceSubscribeError(t *testing.T) {
	b := new(MockBroker)
	b.On("Subscribe", mock.Anything).Return(errors.New("not connected"))
	_, err := NewDevice(b, testTopics, store.NewMemory(), location.NotDetermined, true)
	assert.Error(t, err)
}

func TestDeviceRecordsFixes(t *testing.T) {
	d, b := newTestDevice(t, location.GrantedPrecise)
	d.now = func() time.Time { return time.UnixMilli(42_000) }

	b.deliver("locator/fix/gps", "locator/fix/gps", `{"lat":52.5,"lon":13.4,"accuracy_m":4}`)

	fix, err := d.LastKnownFix(location.ProviderGPS)
	require.NoError(t, err)
	require.NotNil(t, fix)
	assert.Equal(t, 52.5, fix.Latitude)
	assert.Equal(t, int64(42_000), fix.Timestamp)
	assert.Equal(t, location.ProviderGPS, fix.Provider)

	passive, err := d.LastKnownFix(location.ProviderPassive)
	require.NoError(t, err)
	require.NotNil(t, passive)
	assert.Equal(t, location.ProviderPassive, passive.Provider)

	// garbage is dropped
	b.deliver("locator/fix/network", "locator/fix/network", `not json`)
	fix, err = d.LastKnownFix(location.ProviderNetwork)
	require.NoError(t, err)
	assert.Nil(t, fix)
}

func TestDeviceProviderStatus(t *testing.T) {
	d, b := newTestDevice(t, location.GrantedPrecise)

	sub, err := d.SubscribeLiveFix(location.ProviderGPS)
	require.NoError(t, err)
	defer sub.Close()

	b.deliver("locator/provider/+", "locator/provider/gps", "disabled")
	ev := <-sub.Events()
	assert.Equal(t, location.EventProviderDisabled, ev.Kind)
	assert.Equal(t, []location.Provider{location.ProviderNetwork, location.ProviderPassive}, d.AvailableProviders())

	b.deliver("locator/provider/+", "locator/provider/gps", "enabled")
	b.deliver("locator/provider/+", "locator/provider/satellite", "enabled")
	assert.Equal(t, location.PriorityOrder, d.AvailableProviders())
}

func TestDeviceConnectionLossDisablesMQTTFeeds(t *testing.T) {
	d, _ := newTestDevice(t, location.GrantedPrecise)

	d.ConnectionChanged(false)
	assert.Equal(t, []location.Provider{location.ProviderPassive}, d.AvailableProviders())

	d.ConnectionChanged(true)
	assert.Equal(t, location.PriorityOrder, d.AvailableProviders())
}

func TestDevicePermissionTopic(t *testing.T) {
	d, b := newTestDevice(t, location.NotDetermined)
	ch, unwatch := d.WatchPermission()
	defer unwatch()

	b.deliver("locator/permission", "locator/permission", `{"status":"granted_approximate"}`)
	assert.Equal(t, location.GrantedCoarse, <-ch)

	b.deliver("locator/permission", "locator/permission", "denied")
	assert.Equal(t, location.Denied, <-ch)
	assert.Equal(t, location.Denied, d.PermissionStatus())

	b.deliver("locator/permission", "locator/permission", "maybe")
	assert.Equal(t, location.Denied, d.PermissionStatus())
}

func TestDeviceSubscribeRefusedWithoutPermission(t *testing.T) {
	d, _ := newTestDevice(t, location.Denied)
	_, err := d.SubscribeLiveFix(location.ProviderGPS)
	assert.Error(t, err)
}

func TestDevicePromptPublishes(t *testing.T) {
	d, b := newTestDevice(t, location.NotDetermined)
	b.On("Publish", "locator/permission/prompt", false, []byte(`{"status":"not_determined"}`)).Return(nil).Once()

	d.RequestPermissionPrompt()
	b.AssertExpectations(t)
}

func TestDevicePromptPublishFailureIsLogged(t *testing.T) {
	d, b := newTestDevice(t, location.NotDetermined)
	b.On("Publish", "locator/permission/prompt", false, mock.Anything).Return(errors.New("not connected")).Once()

	assert.NotPanics(t, d.RequestPermissionPrompt)
	b.AssertExpectations(t)
}
