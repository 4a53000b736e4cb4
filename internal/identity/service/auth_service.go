package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"geotrack/backend/internal/audit"
	auditdomain "geotrack/backend/internal/audit/domain"
	"geotrack/backend/internal/devpin"
	"geotrack/backend/internal/mail"
	"geotrack/backend/internal/security"
	userdomain "geotrack/backend/internal/user/domain"
	userrepo "geotrack/backend/internal/user/repository"
)

// Sentinel errors for auth service; handler maps them to HTTP statuses.
var (
	ErrInvalidCredentials     = errors.New("PIN incorrect")
	ErrAccountLocked          = errors.New("account locked")
	ErrUnauthorized           = errors.New("not allowed to change another user's PIN")
	ErrNotFound               = errors.New("user not found")
	ErrDeliveryFailed         = errors.New("failed to deliver reset PIN")
	ErrInvalidPin             = errors.New("PIN must be 4 to 8 digits")
	ErrInvalidEmail           = errors.New("invalid email format")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
)

// LockedError is returned while a credential is locked. It matches ErrAccountLocked via errors.Is.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked for %d more minute(s)", e.Minutes())
}

// Is reports whether target is ErrAccountLocked.
func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// Minutes returns the remaining lock time in whole minutes, rounded up, at least 1.
func (e *LockedError) Minutes() int {
	m := int((e.Remaining + time.Minute - 1) / time.Minute)
	if m < 1 {
		return 1
	}
	return m
}

// LoginResult holds the outcome of a successful Login.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	Identity    string
}

// Deps bundles the collaborators of AuthService. Audit, Mail and DevPINs may be nil.
type Deps struct {
	Users   userrepo.Repository
	Hasher  *security.Hasher
	Tokens  *security.TokenProvider
	Audit   audit.AuditLogger
	Mail    mail.Sender
	DevPINs devpin.Store
	Policy  userdomain.LockoutPolicy
	AdminID string
}

// AuthService implements PIN login with lockout, registration, PIN change and PIN reset.
type AuthService struct {
	users   userrepo.Repository
	hasher  *security.Hasher
	tokens  *security.TokenProvider
	audit   audit.AuditLogger
	mail    mail.Sender
	devPINs devpin.Store
	policy  userdomain.LockoutPolicy
	adminID string
	nowF    func() time.Time
	matches func(hash, pin string) bool

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService returns an AuthService with the given dependencies.
// A zero Policy falls back to the default 3 failures / 15 minutes.
func NewAuthService(d Deps) *AuthService {
	policy := d.Policy
	if policy.Threshold <= 0 || policy.Window <= 0 {
		policy = userdomain.DefaultLockoutPolicy()
	}
	sender := d.Mail
	if sender == nil {
		sender = mail.LogSender{}
	}
	return &AuthService{
		users:   d.Users,
		hasher:  d.Hasher,
		tokens:  d.Tokens,
		audit:   d.Audit,
		mail:    sender,
		devPINs: d.DevPINs,
		policy:  policy,
		adminID: normalizeEmail(d.AdminID),
		nowF:    func() time.Time { return time.Now().UTC() },
		matches: d.Hasher.Matches,
	}
}

// Login verifies pin for identity and returns a signed access token.
// An empty identity means the configured admin identity. The lockout counters are
// read and written under a row lock so concurrent attempts are serialized.
func (s *AuthService) Login(ctx context.Context, identity, pin string) (*LoginResult, error) {
	identity = normalizeEmail(identity)
	if identity == "" {
		identity = s.adminID
	}
	if identity == "" {
		s.compareDummy(pin)
		s.logAudit(ctx, identity, auditdomain.ActionLoginFailure, "")
		return nil, ErrInvalidCredentials
	}
	now := s.nowF()
	err := s.users.UpdateLocked(ctx, identity, func(u *userdomain.User) (bool, error) {
		if u == nil {
			s.compareDummy(pin)
			return false, ErrInvalidCredentials
		}
		save := u.ExpireLock(now)
		if u.IsLocked(now) {
			return save, &LockedError{Remaining: u.LockRemaining(now)}
		}
		if !s.matches(u.HashedPIN, pin) {
			if u.RegisterFailure(now, s.policy) {
				return true, &LockedError{Remaining: s.policy.Window}
			}
			return true, ErrInvalidCredentials
		}
		if u.FailedAttemptCount != 0 || u.LockedUntil != nil {
			u.RegisterSuccess(now)
			save = true
		}
		return save, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountLocked):
			s.logAudit(ctx, identity, auditdomain.ActionLoginLocked, "")
		case errors.Is(err, ErrInvalidCredentials):
			s.logAudit(ctx, identity, auditdomain.ActionLoginFailure, "")
		default:
			return nil, fmt.Errorf("login: %w", err)
		}
		return nil, err
	}
	token, expiresAt, err := s.tokens.IssueAccess(identity)
	if err != nil {
		return nil, fmt.Errorf("login: issue token: %w", err)
	}
	s.logAudit(ctx, identity, auditdomain.ActionLoginSuccess, "")
	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		Identity:    identity,
	}, nil
}

// compareDummy spends one bcrypt comparison so an unknown identity costs the same as a wrong PIN.
func (s *AuthService) compareDummy(pin string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("dummy-pin")
		if err != nil {
			log.Printf("auth: dummy hash: %v", err)
			return
		}
		s.dummyHash = h
	})
	if s.dummyHash != "" {
		s.matches(s.dummyHash, pin)
	}
}

// Register creates a credential for email with the given PIN.
func (s *AuthService) Register(ctx context.Context, email, pin string) (*userdomain.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePIN(pin); err != nil {
		return nil, err
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	u, err := s.create(ctx, email, pin)
	if err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}
	s.logAudit(ctx, email, auditdomain.ActionRegister, "")
	return u, nil
}

// ChangePin replaces the PIN of email after verifying oldPin. callerIdentity is the
// identity from the verified token and must match email. Lockout counters are not touched.
func (s *AuthService) ChangePin(ctx context.Context, callerIdentity, email, oldPin, newPin string) error {
	email = normalizeEmail(email)
	if normalizeEmail(callerIdentity) != email || email == "" {
		return ErrUnauthorized
	}
	if err := validatePIN(newPin); err != nil {
		return err
	}
	now := s.nowF()
	err := s.users.UpdateLocked(ctx, email, func(u *userdomain.User) (bool, error) {
		if u == nil {
			return false, ErrNotFound
		}
		if !s.matches(u.HashedPIN, oldPin) {
			return false, ErrInvalidCredentials
		}
		hash, err := s.hasher.Hash(newPin)
		if err != nil {
			return false, err
		}
		u.HashedPIN = hash
		u.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, email, auditdomain.ActionChangePIN, "")
	return nil
}

// ResetPin generates a new random PIN for email, stores its hash, clears lockout and
// delivers it by mail. The stored change stays even when delivery fails.
func (s *AuthService) ResetPin(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", ErrNotFound
	}
	pin, err := security.GeneratePIN(security.ResetPINDigits)
	if err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(pin)
	if err != nil {
		return "", err
	}
	now := s.nowF()
	err = s.users.UpdateLocked(ctx, email, func(u *userdomain.User) (bool, error) {
		if u == nil {
			return false, ErrNotFound
		}
		u.SetPIN(hash, now)
		return true, nil
	})
	if err != nil {
		return "", err
	}
	s.logAudit(ctx, email, auditdomain.ActionResetPIN, "")
	if s.devPINs != nil {
		s.devPINs.Put(ctx, email, pin, devpin.DefaultTTL)
	}
	if err := s.mail.SendResetPIN(ctx, email, pin); err != nil {
		log.Printf("auth: reset PIN delivery to %s failed: %v", email, err)
		return "", fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return pin, nil
}

// EnsureAdmin provisions the credential for identity with pin when it does not exist.
// Returns true if a credential was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, identity, pin string) (bool, error) {
	identity = normalizeEmail(identity)
	if identity == "" {
		return false, errors.New("admin identity is required")
	}
	if err := validatePIN(pin); err != nil {
		return false, err
	}
	existing, err := s.users.GetByEmail(ctx, identity)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if _, err := s.create(ctx, identity, pin); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *AuthService) create(ctx context.Context, email, pin string) (*userdomain.User, error) {
	hash, err := s.hasher.Hash(pin)
	if err != nil {
		return nil, err
	}
	now := s.nowF()
	u := &userdomain.User{
		Email:     email,
		HashedPIN: hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) logAudit(ctx context.Context, identity, action, metadata string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, identity, action, "auth", metadata)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" || !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func validatePIN(pin string) error {
	if len(pin) < 4 || len(pin) > 8 {
		return ErrInvalidPin
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return ErrInvalidPin
		}
	}
	return nil
}
