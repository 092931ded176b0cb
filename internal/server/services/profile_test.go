package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestGetProfile(t *testing.T) {
	h := newHarness(t)
	u, _ := loginPair(t, h)

	p, err := h.svc.GetProfile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.User.ID)
	assert.Len(t, p.Providers, 1)
	assert.EqualValues(t, 1, p.ActiveSessions)

	_, err = h.svc.GetProfile(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetProfile_StorageFailure(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser("alice@example.com", "s3cret-pass", true)
	h.store.failOn = "providers.ListByUser"

	_, err := h.svc.GetProfile(context.Background(), u.ID)
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser("alice@example.com", "s3cret-pass", true)
	other := h.seedUser("bob@example.com", "s3cret-pass", true)

	got, err := h.svc.UpdateProfile(context.Background(), u.ID, &models.ProfilePatch{
		Username:         ptr("  Alice.S "),
		DisplayFirstName: ptr(" Ali "),
		Bio:              ptr("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "alice.s", *got.Username)
	assert.Equal(t, "Ali", got.DisplayFirstName)
	assert.Equal(t, "hello", *got.Bio)

	_, err = h.svc.UpdateProfile(context.Background(), other.ID, &models.ProfilePatch{Username: ptr("alice.s")})
	assert.ErrorIs(t, err, common.ErrUsernameTaken)
	assert.ErrorIs(t, err, common.ErrConflict)

	// keeping one's own username is fine
	_, err = h.svc.UpdateProfile(context.Background(), u.ID, &models.ProfilePatch{Username: ptr("alice.s")})
	assert.NoError(t, err)
}

func TestUpdateProfile_LeavesCallerPatchUntouched(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser("alice@example.com", "s3cret-pass", true)

	patch := &models.ProfilePatch{Username: ptr("  Alice.S "), FirstName: ptr(" Alicia ")}
	username, firstName := patch.Username, patch.FirstName

	got, err := h.svc.UpdateProfile(context.Background(), u.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, "alice.s", *got.Username)
	assert.Equal(t, "Alicia", got.FirstName)

	assert.Same(t, username, patch.Username)
	assert.Same(t, firstName, patch.FirstName)
	assert.Equal(t, "  Alice.S ", *patch.Username)
	assert.Equal(t, " Alicia ", *patch.FirstName)
}

func TestUpdateProfile_Validation(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser("alice@example.com", "s3cret-pass", true)

	tests := []struct {
		name  string
		patch *models.ProfilePatch
		want  error
	}{
		{"empty", &models.ProfilePatch{}, common.ErrNothingToUpdate},
		{"nil", nil, common.ErrNothingToUpdate},
		{"short username", &models.ProfilePatch{Username: ptr("ab")}, common.ErrInvalidUsername},
		{"bad characters", &models.ProfilePatch{Username: ptr("al ice")}, common.ErrInvalidUsername},
		{"blank first name", &models.ProfilePatch{FirstName: ptr(" ")}, common.ErrInvalidName},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.UpdateProfile(context.Background(), u.ID, tc.patch)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestIsUsernameAvailable(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser("alice@example.com", "s3cret-pass", true)
	_, err := h.svc.UpdateProfile(context.Background(), u.ID, &models.ProfilePatch{Username: ptr("alice")})
	require.NoError(t, err)

	ok, err := h.svc.IsUsernameAvailable(context.Background(), "ALICE", "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.svc.IsUsernameAvailable(context.Background(), "alice", u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = h.svc.IsUsernameAvailable(context.Background(), "x", "")
	assert.ErrorIs(t, err, common.ErrInvalidUsername)
}
