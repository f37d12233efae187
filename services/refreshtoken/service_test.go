package refreshtoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tech-arch1tect/treez/testutils"
)

func newTestService(t *testing.T) *Service {
	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &RefreshToken{})
	return NewService(db, cfg, nil)
}

func testDevice() DeviceInfo {
	return DeviceInfo{
		DeviceID:   "device-1",
		DeviceName: "Alice's Laptop",
		Browser:    "Firefox",
		OS:         "Linux",
		IPAddress:  "192.168.1.1",
	}
}

func TestService_StoreAndFind(t *testing.T) {
	service := newTestService(t)

	stored, err := service.Store("user-1", "token-abc", testDevice(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.True(t, stored.IsActive)

	found, err := service.Find("token-abc")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, found.ID)
	assert.Equal(t, "user-1", found.UserID)
	assert.Contains(t, found.DeviceInfo, "device-1")
}

func TestService_FindUnknownToken(t *testing.T) {
	service := newTestService(t)

	_, err := service.Find("never-stored")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestService_FindExpiredTokenRemovesIt(t *testing.T) {
	service := newTestService(t)

	_, err := service.Store("user-1", "token-old", testDevice(), time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = service.Find("token-old")
	assert.ErrorIs(t, err, ErrTokenExpired)

	// the expired record is gone, not just rejected
	_, err = service.Find("token-old")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestService_Rotate(t *testing.T) {
	service := newTestService(t)

	_, err := service.Store("user-1", "token-v1", testDevice(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	rotated, err := service.Rotate("token-v1", "token-v2", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "user-1", rotated.UserID)
	assert.Contains(t, rotated.DeviceInfo, "device-1")

	_, err = service.Find("token-v2")
	require.NoError(t, err)

	_, err = service.Find("token-v1")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestService_RotateTwiceFails(t *testing.T) {
	service := newTestService(t)

	_, err := service.Store("user-1", "token-v1", testDevice(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = service.Rotate("token-v1", "token-v2", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = service.Rotate("token-v1", "token-v3", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestService_Delete(t *testing.T) {
	service := newTestService(t)

	_, err := service.Store("user-1", "token-abc", testDevice(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, service.Delete("token-abc"))

	_, err = service.Find("token-abc")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// deleting again is a no-op
	assert.NoError(t, service.Delete("token-abc"))
}

func TestService_DeactivateAll(t *testing.T) {
	service := newTestService(t)

	for _, token := range []string{"t1", "t2", "t3"} {
		_, err := service.Store("user-1", token, testDevice(), time.Now().Add(time.Hour))
		require.NoError(t, err)
	}
	_, err := service.Store("user-2", "other", testDevice(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	count, err := service.DeactivateAll("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	_, err = service.Find("t1")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// other users are untouched
	_, err = service.Find("other")
	assert.NoError(t, err)
}

func TestService_CleanupUnused(t *testing.T) {
	service := newTestService(t)

	recent, err := service.Store("user-1", "recent", testDevice(), time.Now().Add(30*24*time.Hour))
	require.NoError(t, err)
	stale, err := service.Store("user-1", "stale", testDevice(), time.Now().Add(30*24*time.Hour))
	require.NoError(t, err)

	// last used 29 days ago stays, 31 days ago goes
	require.NoError(t, service.db.Model(&RefreshToken{}).
		Where("id = ?", recent.ID).
		Update("last_used", time.Now().AddDate(0, 0, -29)).Error)
	require.NoError(t, service.db.Model(&RefreshToken{}).
		Where("id = ?", stale.ID).
		Update("last_used", time.Now().AddDate(0, 0, -31)).Error)

	count, err := service.CleanupUnused("user-1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = service.Find("recent")
	assert.NoError(t, err)
	_, err = service.Find("stale")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestService_CleanupExpired(t *testing.T) {
	service := newTestService(t)

	_, err := service.Store("user-1", "live", testDevice(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = service.Store("user-2", "dead", testDevice(), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	count, err := service.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestService_ActiveSessions(t *testing.T) {
	service := newTestService(t)

	_, err := service.Store("user-1", "current-token", testDevice(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	other := testDevice()
	other.DeviceID = "device-2"
	other.DeviceName = "Alice's Phone"
	_, err = service.Store("user-1", "other-token", other, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = service.Store("user-1", "expired-token", testDevice(), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	sessions, err := service.ActiveSessions("user-1", "current-token")
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	var current, rest int
	for _, session := range sessions {
		if session.Current {
			current++
			assert.Equal(t, "device-1", session.Device.DeviceID)
		} else {
			rest++
			assert.Equal(t, "device-2", session.Device.DeviceID)
		}
	}
	assert.Equal(t, 1, current)
	assert.Equal(t, 1, rest)
}

func TestService_TouchLastUsed(t *testing.T) {
	service := newTestService(t)

	stored, err := service.Store("user-1", "token-abc", testDevice(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, service.db.Model(&RefreshToken{}).
		Where("id = ?", stored.ID).
		Update("last_used", time.Now().Add(-time.Hour)).Error)

	require.NoError(t, service.TouchLastUsed(stored.ID))

	found, err := service.Find("token-abc")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), found.LastUsed, 5*time.Second)
}
