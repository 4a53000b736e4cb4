package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"geotrack/backend/internal/devpin"
	"geotrack/backend/internal/security"
	userdomain "geotrack/backend/internal/user/domain"
	userrepo "geotrack/backend/internal/user/repository"
)

type memUserRepo struct {
	mu      sync.Mutex
	nextID  int64
	byEmail map[string]*userdomain.User
	saves   int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byEmail: make(map[string]*userdomain.User)}
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return userrepo.ErrEmailTaken
	}
	r.nextID++
	u.ID = r.nextID
	c := *u
	r.byEmail[u.Email] = &c
	return nil
}

func (r *memUserRepo) UpdateLocked(ctx context.Context, email string, fn userrepo.MutateFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var u *userdomain.User
	if stored, ok := r.byEmail[email]; ok {
		c := *stored
		u = &c
	}
	save, err := fn(u)
	if save && u != nil {
		r.byEmail[email] = u
		r.saves++
	}
	return err
}

func (r *memUserRepo) get(email string) *userdomain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[email]
}

type auditCall struct {
	identity, action string
}

type mockAudit struct {
	mu    sync.Mutex
	calls []auditCall
}

func (m *mockAudit) LogEvent(ctx context.Context, identity, action, resource, metadata string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, auditCall{identity, action})
}

func (m *mockAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.action
	}
	return out
}

type mockMail struct {
	to, pin string
	err     error
}

func (m *mockMail) SendResetPIN(ctx context.Context, to, pin string) error {
	m.to, m.pin = to, pin
	return m.err
}

type testEnv struct {
	svc   *AuthService
	users *memUserRepo
	audit *mockAudit
	mail  *mockMail
	pins  *devpin.MemoryStore
	now   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users: newMemUserRepo(),
		audit: &mockAudit{},
		mail:  &mockMail{},
		pins:  devpin.NewMemoryStore(),
		now:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewAuthService(Deps{
		Users:   env.users,
		Hasher:  security.NewHasher(4),
		Tokens:  security.NewTestTokenProvider(),
		Audit:   env.audit,
		Mail:    env.mail,
		DevPINs: env.pins,
		AdminID: "admin",
	})
	env.svc.nowF = func() time.Time { return env.now }
	return env
}

func (e *testEnv) seed(t *testing.T, email, pin string) {
	t.Helper()
	if _, err := e.svc.EnsureAdmin(context.Background(), email, pin); err != nil {
		t.Fatalf("seed %s: %v", email, err)
	}
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "admin", "1234")

	res, err := env.svc.Login(context.Background(), "", "1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" {
		t.Error("access token should be set")
	}
	if res.TokenType != "bearer" {
		t.Errorf("TokenType = %q, want %q", res.TokenType, "bearer")
	}
	if res.Identity != "admin" {
		t.Errorf("Identity = %q, want %q", res.Identity, "admin")
	}
	identity, err := security.NewTestTokenProvider().ValidateAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if identity != "admin" {
		t.Errorf("token subject = %q, want %q", identity, "admin")
	}
}

func TestLogin_UnknownIdentity(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Login(context.Background(), "nobody@example.com", "1234")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login unknown: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_UnknownIdentityStillComparesHash(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "admin", "1234")
	compares := 0
	matches := env.svc.matches
	env.svc.matches = func(hash, pin string) bool {
		compares++
		return matches(hash, pin)
	}
	ctx := context.Background()

	if _, err := env.svc.Login(ctx, "nobody@example.com", "1234"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login unknown: err = %v, want ErrInvalidCredentials", err)
	}
	if compares != 1 {
		t.Errorf("compares for unknown identity = %d, want 1", compares)
	}
	compares = 0
	if _, err := env.svc.Login(ctx, "", "0000"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login wrong pin: err = %v, want ErrInvalidCredentials", err)
	}
	if compares != 1 {
		t.Errorf("compares for wrong pin = %d, want 1", compares)
	}
}

func TestLogin_EmptyPINCountsAsFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "admin", "1234")
	if _, err := env.svc.Login(context.Background(), "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if got := env.users.get("admin").FailedAttemptCount; got != 1 {
		t.Errorf("FailedAttemptCount = %d, want 1", got)
	}
}

func TestLogin_LockoutAfterThreeFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "admin", "1234")
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		_, err := env.svc.Login(ctx, "", "0000")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i, err)
		}
		if got := env.users.get("admin").FailedAttemptCount; got != i {
			t.Errorf("attempt %d: FailedAttemptCount = %d, want %d", i, got, i)
		}
	}

	_, err := env.svc.Login(ctx, "", "0000")
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("third attempt: err = %v, want *LockedError", err)
	}
	if !errors.Is(err, ErrAccountLocked) {
		t.Error("LockedError should match ErrAccountLocked")
	}
	if locked.Minutes() != 15 {
		t.Errorf("Minutes() = %d, want 15", locked.Minutes())
	}
	u := env.users.get("admin")
	if u.LockedUntil == nil || !u.LockedUntil.Equal(env.now.Add(15*time.Minute)) {
		t.Errorf("LockedUntil = %v, want %v", u.LockedUntil, env.now.Add(15*time.Minute))
	}

	// Correct PIN is still refused while locked.
	env.now = env.now.Add(10*time.Minute + 30*time.Second)
	_, err = env.svc.Login(ctx, "", "1234")
	if !errors.As(err, &locked) {
		t.Fatalf("locked attempt: err = %v, want *LockedError", err)
	}
	if locked.Minutes() != 5 {
		t.Errorf("Minutes() = %d, want 5", locked.Minutes())
	}

	// After expiry the correct PIN succeeds and resets the counter.
	env.now = env.now.Add(5 * time.Minute)
	if _, err := env.svc.Login(ctx, "", "1234"); err != nil {
		t.Fatalf("Login after expiry: %v", err)
	}
	u = env.users.get("admin")
	if u.FailedAttemptCount != 0 || u.LockedUntil != nil {
		t.Errorf("after success: count=%d lockedUntil=%v, want 0, nil", u.FailedAttemptCount, u.LockedUntil)
	}
}

func TestLogin_ExpiredLockThenWrongPINStartsOver(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "admin", "1234")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = env.svc.Login(ctx, "", "0000")
	}
	env.now = env.now.Add(16 * time.Minute)

	_, err := env.svc.Login(ctx, "", "0000")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if got := env.users.get("admin").FailedAttemptCount; got != 1 {
		t.Errorf("FailedAttemptCount = %d, want 1", got)
	}
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "admin", "1234")
	ctx := context.Background()
	_, _ = env.svc.Login(ctx, "", "0000")
	_, _ = env.svc.Login(ctx, "", "0000")
	if _, err := env.svc.Login(ctx, "", "1234"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := env.users.get("admin").FailedAttemptCount; got != 0 {
		t.Errorf("FailedAttemptCount = %d, want 0", got)
	}
	_, err := env.svc.Login(ctx, "", "0000")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials (not locked)", err)
	}
}

func TestLogin_AuditsOutcomes(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "admin", "1234")
	ctx := context.Background()
	_, _ = env.svc.Login(ctx, "", "1234")
	_, _ = env.svc.Login(ctx, "", "0000")
	_, _ = env.svc.Login(ctx, "", "0000")
	_, _ = env.svc.Login(ctx, "", "0000")

	got := env.audit.actions()
	want := []string{"login_success", "login_failure", "login_failure", "login_locked"}
	if len(got) != len(want) {
		t.Fatalf("audit actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("audit[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLockedError_MinutesRoundsUp(t *testing.T) {
	testCases := []struct {
		remaining time.Duration
		want      int
	}{
		{0, 1},
		{time.Second, 1},
		{time.Minute, 1},
		{time.Minute + time.Second, 2},
		{15 * time.Minute, 15},
	}
	for _, tc := range testCases {
		if got := (&LockedError{Remaining: tc.remaining}).Minutes(); got != tc.want {
			t.Errorf("Minutes(%v) = %d, want %d", tc.remaining, got, tc.want)
		}
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.svc.Register(ctx, " Ops@Example.com ", "5678")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "ops@example.com" {
		t.Errorf("Email = %q, want normalized %q", u.Email, "ops@example.com")
	}
	if u.ID == 0 {
		t.Error("ID should be assigned")
	}
	if u.HashedPIN == "5678" {
		t.Error("PIN must be stored hashed")
	}
	if _, err := env.svc.Login(ctx, "ops@example.com", "5678"); err != nil {
		t.Errorf("Login after register: %v", err)
	}

	if _, err := env.svc.Register(ctx, "ops@example.com", "1111"); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("duplicate Register: err = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	testCases := []struct {
		name    string
		email   string
		pin     string
		wantErr error
	}{
		{"bad email", "not-an-email", "1234", ErrInvalidEmail},
		{"empty email", "", "1234", ErrInvalidEmail},
		{"short pin", "a@example.com", "123", ErrInvalidPin},
		{"long pin", "a@example.com", "123456789", ErrInvalidPin},
		{"non digit pin", "a@example.com", "12a4", ErrInvalidPin},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.Register(context.Background(), tc.email, tc.pin); !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestChangePin(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "a@example.com", "1234")
	ctx := context.Background()

	if err := env.svc.ChangePin(ctx, "other@example.com", "a@example.com", "1234", "9999"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("mismatched caller: err = %v, want ErrUnauthorized", err)
	}
	if err := env.svc.ChangePin(ctx, "a@example.com", "a@example.com", "0000", "9999"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong old pin: err = %v, want ErrInvalidCredentials", err)
	}
	if got := env.users.get("a@example.com").FailedAttemptCount; got != 0 {
		t.Errorf("FailedAttemptCount after wrong old pin = %d, want 0", got)
	}
	if err := env.svc.ChangePin(ctx, "a@example.com", "a@example.com", "1234", "9x"); !errors.Is(err, ErrInvalidPin) {
		t.Errorf("invalid new pin: err = %v, want ErrInvalidPin", err)
	}
	if err := env.svc.ChangePin(ctx, "a@example.com", "a@example.com", "1234", "9999"); err != nil {
		t.Fatalf("ChangePin: %v", err)
	}
	if _, err := env.svc.Login(ctx, "a@example.com", "9999"); err != nil {
		t.Errorf("Login with new pin: %v", err)
	}
	if _, err := env.svc.Login(ctx, "a@example.com", "1234"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login with old pin: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestChangePin_NotFound(t *testing.T) {
	env := newTestEnv(t)
	err := env.svc.ChangePin(context.Background(), "ghost@example.com", "ghost@example.com", "1234", "5678")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResetPin(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "a@example.com", "1234")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = env.svc.Login(ctx, "a@example.com", "0000")
	}

	pin, err := env.svc.ResetPin(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("ResetPin: %v", err)
	}
	if len(pin) != security.ResetPINDigits {
		t.Errorf("pin length = %d, want %d", len(pin), security.ResetPINDigits)
	}
	if env.mail.to != "a@example.com" || env.mail.pin != pin {
		t.Errorf("mail sent to %q with %q, want %q with %q", env.mail.to, env.mail.pin, "a@example.com", pin)
	}
	u := env.users.get("a@example.com")
	if u.FailedAttemptCount != 0 || u.LockedUntil != nil {
		t.Errorf("lockout not cleared: count=%d lockedUntil=%v", u.FailedAttemptCount, u.LockedUntil)
	}
	if got, ok := env.pins.Get(ctx, "a@example.com"); !ok || got != pin {
		t.Errorf("dev pin = %q, %v; want %q, true", got, ok, pin)
	}
	if _, err := env.svc.Login(ctx, "a@example.com", pin); err != nil {
		t.Errorf("Login with reset pin: %v", err)
	}
}

func TestResetPin_NotFound(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.ResetPin(context.Background(), "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if env.mail.to != "" {
		t.Error("no mail should be sent for unknown users")
	}
}

func TestResetPin_DeliveryFailureKeepsChange(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "a@example.com", "1234")
	env.mail.err = errors.New("smtp down")
	ctx := context.Background()

	_, err := env.svc.ResetPin(ctx, "a@example.com")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("err = %v, want ErrDeliveryFailed", err)
	}
	if _, err := env.svc.Login(ctx, "a@example.com", "1234"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old pin should no longer work: err = %v", err)
	}
	if _, err := env.svc.Login(ctx, "a@example.com", env.mail.pin); err != nil {
		t.Errorf("new pin should work: %v", err)
	}
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.EnsureAdmin(ctx, "admin", "1234")
	if err != nil || !created {
		t.Fatalf("first EnsureAdmin = %v, %v; want true, nil", created, err)
	}
	created, err = env.svc.EnsureAdmin(ctx, "admin", "9999")
	if err != nil || created {
		t.Fatalf("second EnsureAdmin = %v, %v; want false, nil", created, err)
	}
	if _, err := env.svc.Login(ctx, "", "1234"); err != nil {
		t.Errorf("original PIN should remain: %v", err)
	}
	if _, err := env.svc.EnsureAdmin(ctx, "", "1234"); err == nil {
		t.Error("empty identity should fail")
	}
}
