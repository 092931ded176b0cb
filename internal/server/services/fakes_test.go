package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/dbx"
	"github.com/dmitrijs2005/soultalk/internal/server/config"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
	"github.com/dmitrijs2005/soultalk/internal/server/repositories/providers"
	"github.com/dmitrijs2005/soultalk/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/soultalk/internal/server/repositories/users"
	"github.com/dmitrijs2005/soultalk/internal/server/repositories/verifications"
)

// memStore is an in-memory stand-in for the four repositories. It ignores
// the DBTX it is handed, so rollbacks are asserted through sqlmock only.
type memStore struct {
	mu sync.Mutex

	seq           int
	users         map[string]*models.User
	links         []*models.LinkedProvider
	sessions      map[string]*models.RefreshSession
	verifications map[string]*models.VerificationRecord

	// failOn makes the named operation return an opaque storage error.
	failOn string
	// afterFindSession runs with the lock held once FindByHash has read
	// its row, to simulate a concurrent writer.
	afterFindSession func(*models.RefreshSession)
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]*models.User{},
		sessions:      map[string]*models.RefreshSession{},
		verifications: map[string]*models.VerificationRecord{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) fail(op string) error {
	if s.failOn == op {
		return fmt.Errorf("db error: %s exploded", op)
	}
	return nil
}

type fakeRepoManager struct{ store *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return &fakeUsers{m.store} }
func (m *fakeRepoManager) Providers(dbx.DBTX) providers.Repository      { return &fakeProviders{m.store} }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return &fakeSessions{m.store}
}
func (m *fakeRepoManager) Verifications(dbx.DBTX) verifications.Repository {
	return &fakeVerifications{m.store}
}

// ---------- users ----------

type fakeUsers struct{ s *memStore }

func (r *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.Create"); err != nil {
		return nil, err
	}
	email := common.NormalizeEmail(u.Email)
	for _, existing := range r.s.users {
		if existing.Email == email {
			return nil, common.ErrConflict
		}
	}
	cp := *u
	cp.ID = r.s.nextID("u")
	cp.Email = email
	r.s.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.GetByEmail"); err != nil {
		return nil, err
	}
	email = common.NormalizeEmail(email)
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeUsers) IsUsernameAvailable(_ context.Context, username, except string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username != nil && *u.Username == username && u.ID != except {
			return false, nil
		}
	}
	return true, nil
}

func (r *fakeUsers) UpdateProfile(_ context.Context, id string, p *models.ProfilePatch) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p.Username != nil {
		for _, other := range r.s.users {
			if other.ID != id && other.Username != nil && *other.Username == *p.Username {
				return nil, common.ErrUsernameTaken
			}
		}
		v := *p.Username
		u.Username = &v
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&u.FirstName, p.FirstName)
	set(&u.LastName, p.LastName)
	set(&u.DisplayFirstName, p.DisplayFirstName)
	if p.Bio != nil {
		v := *p.Bio
		u.Bio = &v
	}
	if p.Pronoun != nil {
		v := *p.Pronoun
		u.Pronoun = &v
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUsers) SetPassword(_ context.Context, id, digest string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = &digest
	return nil
}

func (r *fakeUsers) MarkEmailVerified(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.EmailVerified = true
	return nil
}

func (r *fakeUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.LastLoginAt = &at
	return nil
}

// ---------- providers ----------

type fakeProviders struct{ s *memStore }

func (r *fakeProviders) Link(_ context.Context, l *models.LinkedProvider) (*models.LinkedProvider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.links {
		if existing.Provider == l.Provider && existing.ProviderUserID == l.ProviderUserID {
			return nil, common.ErrConflict
		}
	}
	cp := *l
	cp.ID = r.s.nextID("l")
	r.s.links = append(r.s.links, &cp)
	out := cp
	return &out, nil
}

func (r *fakeProviders) GetByProvider(_ context.Context, p models.Provider, pid string) (*models.LinkedProvider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.links {
		if l.Provider == p && l.ProviderUserID == pid {
			cp := *l
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeProviders) ListByUser(_ context.Context, userID string) ([]*models.LinkedProvider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("providers.ListByUser"); err != nil {
		return nil, err
	}
	var out []*models.LinkedProvider
	for _, l := range r.s.links {
		if l.UserID == userID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeProviders) Unlink(_ context.Context, userID string, p models.Provider) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, l := range r.s.links {
		if l.UserID == userID && l.Provider == p {
			r.s.links = append(r.s.links[:i], r.s.links[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// ---------- refresh sessions ----------

type fakeSessions struct{ s *memStore }

func (r *fakeSessions) Create(_ context.Context, sess *models.RefreshSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *sess
	cp.ID = r.s.nextID("rt")
	r.s.sessions[cp.ID] = &cp
	return nil
}

func (r *fakeSessions) FindByHash(_ context.Context, digest string) (*models.RefreshSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.TokenHash == digest {
			cp := *sess
			if r.s.afterFindSession != nil {
				r.s.afterFindSession(sess)
			}
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeSessions) Revoke(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok || sess.IsRevoked {
		return false, nil
	}
	sess.IsRevoked = true
	return true, nil
}

func (r *fakeSessions) RevokeByHash(_ context.Context, digest string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.TokenHash == digest && !sess.IsRevoked {
			sess.IsRevoked = true
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSessions) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, sess := range r.s.sessions {
		if sess.UserID == userID && !sess.IsRevoked {
			sess.IsRevoked = true
			n++
		}
	}
	return n, nil
}

func (r *fakeSessions) CountActive(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, sess := range r.s.sessions {
		if sess.UserID == userID && !sess.IsRevoked {
			n++
		}
	}
	return n, nil
}

// ---------- verifications ----------

type fakeVerifications struct{ s *memStore }

func (r *fakeVerifications) Create(_ context.Context, rec *models.VerificationRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("verifications.Create"); err != nil {
		return err
	}
	cp := *rec
	cp.ID = r.s.nextID("v")
	r.s.verifications[cp.ID] = &cp
	return nil
}

func (r *fakeVerifications) FindForUser(_ context.Context, userID string, kind models.VerificationKind, digest string) (*models.VerificationRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *models.VerificationRecord
	for _, rec := range r.s.verifications {
		if rec.UserID == userID && rec.Kind == kind && rec.TokenHash == digest {
			if found == nil || found.IsUsed {
				found = rec
			}
		}
	}
	if found == nil {
		return nil, common.ErrorNotFound
	}
	cp := *found
	return &cp, nil
}

func (r *fakeVerifications) FindByHash(_ context.Context, kind models.VerificationKind, digest string) (*models.VerificationRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.verifications {
		if rec.Kind == kind && rec.TokenHash == digest {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeVerifications) MarkUsed(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.verifications[id]
	if !ok || rec.IsUsed {
		return false, nil
	}
	rec.IsUsed = true
	return true, nil
}

func (r *fakeVerifications) InvalidateAll(_ context.Context, userID string, kind models.VerificationKind) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, rec := range r.s.verifications {
		if rec.UserID == userID && rec.Kind == kind && !rec.IsUsed {
			rec.IsUsed = true
			n++
		}
	}
	return n, nil
}

// ---------- collaborators ----------

// plainHasher keeps tests fast; bcrypt has its own tests.
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "h:" + pw, nil }
func (plainHasher) Verify(pw, digest string) bool  { return digest == "h:"+pw }

// countingHasher records every digest Verify is asked to check.
type countingHasher struct {
	plainHasher
	mu       sync.Mutex
	verified []string
}

func (c *countingHasher) Verify(pw, digest string) bool {
	c.mu.Lock()
	c.verified = append(c.verified, digest)
	c.mu.Unlock()
	return c.plainHasher.Verify(pw, digest)
}

type sentMail struct {
	Kind, To, Name, Secret string
	Expiry                 time.Duration
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) SendVerification(_ context.Context, to, name, code string, expiry time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{"verification", to, name, code, expiry})
	return n.err
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, to, name, token string, expiry time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{"reset", to, name, token, expiry})
	return n.err
}

func (n *fakeNotifier) last(t *testing.T) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatalf("no mail sent")
	}
	return n.sent[len(n.sent)-1]
}

type fakeLimiter struct {
	err   error
	calls []string
}

func (l *fakeLimiter) Allow(_ context.Context, scope, key string) error {
	l.calls = append(l.calls, scope+":"+key)
	return l.err
}

// ---------- harness ----------

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc    *AuthService
	store  *memStore
	mock   sqlmock.Sqlmock
	mail   *fakeNotifier
	limit  *fakeLimiter
	clock  *time.Time
	client models.ClientInfo
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()

	h := &harness{
		store:  newMemStore(),
		mock:   mock,
		mail:   &fakeNotifier{},
		limit:  &fakeLimiter{},
		client: models.ClientInfo{DeviceInfo: "test-agent/1.0", IPAddress: "203.0.113.7"},
	}
	now := testNow
	h.clock = &now

	base := []Option{
		WithHasher(plainHasher{}),
		WithNotifier(h.mail),
		WithLimiter(h.limit),
		WithClock(func() time.Time { return *h.clock }),
	}
	h.svc = NewAuthService(db, &fakeRepoManager{store: h.store}, cfg, append(base, opts...)...)
	return h
}

func (h *harness) commit()   { h.mock.ExpectBegin(); h.mock.ExpectCommit() }
func (h *harness) rollback() { h.mock.ExpectBegin(); h.mock.ExpectRollback() }

func (h *harness) advance(d time.Duration) { *h.clock = h.clock.Add(d) }

func (h *harness) verifyMock(t *testing.T) {
	t.Helper()
	if err := h.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

// seedUser inserts an account directly. An empty password makes it
// social-only.
func (h *harness) seedUser(email, password string, verified bool, providers ...models.Provider) *models.User {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	u := &models.User{
		ID:               h.store.nextID("u"),
		Email:            strings.ToLower(email),
		FirstName:        "Alice",
		LastName:         "Smith",
		DisplayFirstName: "Alice",
		EmailVerified:    verified,
		IsActive:         true,
	}
	if password != "" {
		d := "h:" + password
		u.PasswordHash = &d
	}
	h.store.users[u.ID] = u
	for _, p := range providers {
		pid := u.Email
		if p.IsSocial() {
			pid = string(p) + "-" + u.ID
		}
		h.store.links = append(h.store.links, &models.LinkedProvider{
			ID: h.store.nextID("l"), UserID: u.ID, Provider: p, ProviderUserID: pid,
		})
	}
	cp := *u
	return &cp
}

func (h *harness) user(id string) *models.User {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	cp := *h.store.users[id]
	return &cp
}
