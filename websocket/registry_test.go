package websocket

import (
	"context"
	"testing"
	"vitalwatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(identity models.Identity, buffer int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		send:            make(chan models.WSMessage, buffer),
		identity:        identity,
		isActive:        true,
		isAuthenticated: true,
		connectionID:    "test-" + identity.UserID,
		ctx:             ctx,
		cancel:          cancel,
	}
}

func nurseIdentity(userID string, patients ...string) models.Identity {
	return models.Identity{
		UserID:           userID,
		Role:             models.RoleNurse,
		Permissions:      models.DefaultPermissions(models.RoleNurse),
		AssignedPatients: patients,
	}
}

func TestRegistrySubscribeRequiresEntitlement(t *testing.T) {
	reg := NewRegistry()
	client := newTestClient(nurseIdentity("nurse-1", "patient-a"), 8)
	reg.Register(client)

	assert.True(t, reg.Subscribe(client, "patient-a"))
	assert.False(t, reg.Subscribe(client, "patient-b"), "unassigned patient must be ignored")
	assert.False(t, reg.Subscribe(client, ""), "empty patient ID must be ignored")

	assert.True(t, reg.Subscribed(client, "patient-a"))
	assert.False(t, reg.Subscribed(client, "patient-b"))
	assert.Equal(t, []string{"patient-a"}, reg.Subscriptions(client))
}

func TestRegistryAdminObservesAnyPatient(t *testing.T) {
	reg := NewRegistry()
	admin := newTestClient(models.Identity{
		UserID:      "admin-1",
		Role:        models.RoleAdmin,
		Permissions: models.DefaultPermissions(models.RoleAdmin),
	}, 8)
	reg.Register(admin)

	assert.True(t, reg.Subscribe(admin, "patient-a"))
	assert.True(t, reg.Subscribe(admin, "patient-b"))
}

func TestRegistryDoctorOverrideObservesAnyPatient(t *testing.T) {
	reg := NewRegistry()

	override := newTestClient(models.Identity{
		UserID:      "doctor-1",
		Role:        models.RoleDoctor,
		Permissions: models.DefaultPermissions(models.RoleDoctor),
	}, 8)
	reg.Register(override)
	assert.True(t, reg.Subscribe(override, "patient-z"))

	noOverride := newTestClient(models.Identity{
		UserID:      "doctor-2",
		Role:        models.RoleDoctor,
		Permissions: models.Permissions{ViewVitals: true, ViewAlerts: true},
	}, 8)
	reg.Register(noOverride)
	assert.False(t, reg.Subscribe(noOverride, "patient-z"))
}

func TestRegistryUnsubscribeUnknownPatientIsNoop(t *testing.T) {
	reg := NewRegistry()
	client := newTestClient(nurseIdentity("nurse-1", "patient-a"), 8)
	reg.Register(client)

	require.True(t, reg.Subscribe(client, "patient-a"))
	reg.Unsubscribe(client, "patient-never-subscribed")
	assert.True(t, reg.Subscribed(client, "patient-a"))

	reg.Unsubscribe(client, "patient-a")
	assert.False(t, reg.Subscribed(client, "patient-a"))
}

func TestRegistryRefreshRevokesStaleSubscriptions(t *testing.T) {
	reg := NewRegistry()
	client := newTestClient(nurseIdentity("nurse-1", "patient-a", "patient-b"), 8)
	reg.Register(client)

	require.True(t, reg.Subscribe(client, "patient-a"))
	require.True(t, reg.Subscribe(client, "patient-b"))

	revoked := reg.Refresh(client, nurseIdentity("nurse-1", "patient-b"))

	assert.Equal(t, []string{"patient-a"}, revoked)
	assert.False(t, reg.Subscribed(client, "patient-a"))
	assert.True(t, reg.Subscribed(client, "patient-b"))
}

func TestRegistryRemoveDropsAllSubscriptions(t *testing.T) {
	reg := NewRegistry()
	client := newTestClient(nurseIdentity("nurse-1", "patient-a"), 8)
	reg.Register(client)
	require.True(t, reg.Subscribe(client, "patient-a"))

	reg.Remove(client)

	assert.False(t, reg.Subscribed(client, "patient-a"))
	assert.Equal(t, 0, reg.ConnectionCount())
	assert.False(t, reg.Subscribe(client, "patient-a"), "removed connection cannot re-subscribe")
}
