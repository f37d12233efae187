package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tech-arch1tect/treez/testutils"
)

func newTestService(t *testing.T) *Service {
	db := testutils.SetupTestDB(t, &Role{}, &User{})
	return NewService(db, nil)
}

func seedUser(t *testing.T, service *Service, email string) *User {
	role, err := service.EnsureRole("user")
	require.NoError(t, err)

	user := &User{
		Name:         "Alice Example",
		Email:        email,
		PasswordHash: "not-a-real-hash",
		RoleID:       role.ID,
	}
	require.NoError(t, service.Create(user))
	return user
}

func TestService_EnsureRole(t *testing.T) {
	service := newTestService(t)

	role, err := service.EnsureRole("admin")
	require.NoError(t, err)
	assert.NotEmpty(t, role.ID)

	again, err := service.EnsureRole("admin")
	require.NoError(t, err)
	assert.Equal(t, role.ID, again.ID)
}

func TestService_CreateAndFind(t *testing.T) {
	service := newTestService(t)
	user := seedUser(t, service, "alice@example.com")

	t.Run("find by email", func(t *testing.T) {
		found, err := service.FindByEmail("alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
		assert.Equal(t, "user", found.Role.Name)
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		found, err := service.FindByEmail("ALICE@Example.COM")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("find by id", func(t *testing.T) {
		found, err := service.FindByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", found.Email)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := service.FindByEmail("bob@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = service.FindByID("missing")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestService_CreateDuplicateEmail(t *testing.T) {
	service := newTestService(t)
	seedUser(t, service, "alice@example.com")

	role, err := service.FindRoleByName("user")
	require.NoError(t, err)

	err = service.Create(&User{
		Name:         "Other Alice",
		Email:        "Alice@Example.com",
		PasswordHash: "not-a-real-hash",
		RoleID:       role.ID,
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestService_UpdateProfile(t *testing.T) {
	service := newTestService(t)
	user := seedUser(t, service, "alice@example.com")

	t.Run("partial update", func(t *testing.T) {
		name := "Alice Updated"
		location := "Leeds"
		updated, err := service.UpdateProfile(user.ID, ProfileUpdate{
			Name:     &name,
			Location: &location,
		})
		require.NoError(t, err)
		assert.Equal(t, "Alice Updated", updated.Name)
		require.NotNil(t, updated.Location)
		assert.Equal(t, "Leeds", *updated.Location)
		assert.Equal(t, "alice@example.com", updated.Email)
	})

	t.Run("clearing an optional field", func(t *testing.T) {
		empty := ""
		updated, err := service.UpdateProfile(user.ID, ProfileUpdate{Location: &empty})
		require.NoError(t, err)
		assert.Nil(t, updated.Location)
	})

	t.Run("email change to a taken address", func(t *testing.T) {
		seedUser(t, service, "bob@example.com")

		taken := "bob@example.com"
		_, err := service.UpdateProfile(user.ID, ProfileUpdate{Email: &taken})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("phone uniqueness", func(t *testing.T) {
		phone := "07700900000"
		_, err := service.UpdateProfile(user.ID, ProfileUpdate{Phone: &phone})
		require.NoError(t, err)

		bob, err := service.FindByEmail("bob@example.com")
		require.NoError(t, err)

		_, err = service.UpdateProfile(bob.ID, ProfileUpdate{Phone: &phone})
		assert.ErrorIs(t, err, ErrPhoneTaken)
	})
}

func TestService_UpdatePassword(t *testing.T) {
	service := newTestService(t)
	user := seedUser(t, service, "alice@example.com")

	require.NoError(t, service.UpdatePassword(user.ID, "new-hash"))

	found, err := service.FindByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", found.PasswordHash)

	assert.ErrorIs(t, service.UpdatePassword("missing", "hash"), ErrUserNotFound)
}
