package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/soultalk/internal/client/client"
	"github.com/dmitrijs2005/soultalk/internal/client/repositories/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient embeds the interface so tests only stub what they touch.
type fakeClient struct {
	client.Client

	tokens *client.Tokens

	loginErr   error
	profile    *client.Profile
	profileErr error
	verifyUser *client.User
	verifyTok  *client.Tokens
	logoutErr  error
	rotateTo   *client.Tokens
	calls      []string
}

func (f *fakeClient) SetTokens(t *client.Tokens) { f.tokens = t }
func (f *fakeClient) Tokens() *client.Tokens     { return f.tokens }

func (f *fakeClient) Login(ctx context.Context, email, password string) (*client.Tokens, error) {
	f.calls = append(f.calls, "login")
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.tokens = &client.Tokens{AccessToken: "a1", RefreshToken: "r1"}
	return f.tokens, nil
}

func (f *fakeClient) Profile(ctx context.Context) (*client.Profile, error) {
	f.calls = append(f.calls, "profile")
	if f.rotateTo != nil {
		f.tokens = f.rotateTo
	}
	return f.profile, f.profileErr
}

func (f *fakeClient) VerifyEmail(ctx context.Context, email, code string) (*client.User, *client.Tokens, error) {
	if f.verifyTok != nil {
		f.tokens = f.verifyTok
	}
	return f.verifyUser, f.verifyTok, nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.calls = append(f.calls, "logout")
	f.tokens = nil
	return f.logoutErr
}

func (f *fakeClient) LogoutAll(ctx context.Context) (int64, error) {
	f.tokens = nil
	return 4, nil
}

func (f *fakeClient) ChangePassword(ctx context.Context, current, next string) error {
	f.tokens = nil
	return nil
}

func newService(t *testing.T, c *fakeClient) (*authService, session.Repository) {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := session.NewSQLiteRepository(db)
	svc := NewAuthService(c, repo).(*authService)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestLogin_SavesSession(t *testing.T) {
	fc := &fakeClient{profile: &client.Profile{User: client.User{ID: "u-1", Email: "alice@example.com"}}}
	svc, repo := newService(t, fc)
	ctx := context.Background()

	s, err := svc.Login(ctx, "Alice@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", s.UserID)
	assert.Equal(t, []string{"login", "profile"}, fc.calls)

	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, s, stored)
	assert.Equal(t, s, svc.Current())
}

func TestLogin_Rejected(t *testing.T) {
	fc := &fakeClient{loginErr: client.ErrUnauthorized}
	svc, repo := newService(t, fc)

	_, err := svc.Login(context.Background(), "alice@example.com", "bad")
	require.ErrorIs(t, err, client.ErrUnauthorized)

	stored, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRestore_LoadsTokensIntoClient(t *testing.T) {
	fc := &fakeClient{}
	svc, repo := newService(t, fc)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &session.Session{UserID: "u-1", Email: "a@b.co", AccessToken: "a9", RefreshToken: "r9"}))

	s, err := svc.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, &client.Tokens{AccessToken: "a9", RefreshToken: "r9"}, fc.tokens)
}

func TestRestore_Empty(t *testing.T) {
	fc := &fakeClient{}
	svc, _ := newService(t, fc)

	s, err := svc.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, fc.tokens)
}

func TestProfile_PersistsRotatedTokens(t *testing.T) {
	fc := &fakeClient{profile: &client.Profile{User: client.User{ID: "u-1", Email: "a@b.co"}}}
	svc, repo := newService(t, fc)
	ctx := context.Background()
	_, err := svc.Login(ctx, "a@b.co", "password1")
	require.NoError(t, err)

	fc.rotateTo = &client.Tokens{AccessToken: "a2", RefreshToken: "r2"}
	_, err = svc.Profile(ctx)
	require.NoError(t, err)

	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r2", stored.RefreshToken)
	assert.Equal(t, "u-1", stored.UserID)
}

func TestVerifyEmail(t *testing.T) {
	t.Run("signs in when tokens come back", func(t *testing.T) {
		fc := &fakeClient{
			verifyUser: &client.User{ID: "u-1", Email: "a@b.co", EmailVerified: true},
			verifyTok:  &client.Tokens{AccessToken: "a1", RefreshToken: "r1"},
		}
		svc, repo := newService(t, fc)

		_, signedIn, err := svc.VerifyEmail(context.Background(), "a@b.co", "123456")
		require.NoError(t, err)
		assert.True(t, signedIn)

		stored, err := repo.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "u-1", stored.UserID)
	})

	t.Run("no tokens leaves session alone", func(t *testing.T) {
		fc := &fakeClient{verifyUser: &client.User{ID: "u-1"}}
		svc, repo := newService(t, fc)

		_, signedIn, err := svc.VerifyEmail(context.Background(), "a@b.co", "123456")
		require.NoError(t, err)
		assert.False(t, signedIn)

		stored, err := repo.Load(context.Background())
		require.NoError(t, err)
		assert.Nil(t, stored)
	})
}

func TestLogout_ClearsEvenOnServerError(t *testing.T) {
	fc := &fakeClient{
		profile:   &client.Profile{User: client.User{ID: "u-1", Email: "a@b.co"}},
		logoutErr: errors.New("server unavailable"),
	}
	svc, repo := newService(t, fc)
	ctx := context.Background()
	_, err := svc.Login(ctx, "a@b.co", "password1")
	require.NoError(t, err)

	assert.Error(t, svc.Logout(ctx))
	assert.Nil(t, svc.Current())

	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestLogoutAllAndChangePassword_ClearSession(t *testing.T) {
	fc := &fakeClient{profile: &client.Profile{User: client.User{ID: "u-1", Email: "a@b.co"}}}
	svc, repo := newService(t, fc)
	ctx := context.Background()

	_, err := svc.Login(ctx, "a@b.co", "password1")
	require.NoError(t, err)
	n, err := svc.LogoutAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.Nil(t, svc.Current())

	_, err = svc.Login(ctx, "a@b.co", "password1")
	require.NoError(t, err)
	require.NoError(t, svc.ChangePassword(ctx, "password1", "password2"))

	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}
