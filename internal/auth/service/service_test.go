package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/qatech/internal/actorcontext"
	auditdomain "github.com/smallbiznis/qatech/internal/audit/domain"
	authdomain "github.com/smallbiznis/qatech/internal/auth/domain"
	"github.com/smallbiznis/qatech/internal/auth/password"
	"github.com/smallbiznis/qatech/internal/auth/repository"
	"github.com/smallbiznis/qatech/internal/auth/token"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/config"
	"github.com/smallbiznis/qatech/internal/testutil"
	userrepository "github.com/smallbiznis/qatech/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []map[string]any
}

func (m *captureMailer) Send(ctx context.Context, to []string, subject, body string) error {
	return nil
}

func (m *captureMailer) SendTemplate(ctx context.Context, to []string, name string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data.(map[string]any))
	return nil
}

func (m *captureMailer) lastOTP(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no email sent")
	}
	return m.sent[len(m.sent)-1]["OTP"].(string)
}

type recordingAudit struct {
	actions []string
}

func (a *recordingAudit) AuditLog(ctx context.Context, actorType string, actorID *string, action, targetType string, targetID *string, metadata map[string]any) error {
	a.actions = append(a.actions, action)
	return nil
}

func (a *recordingAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type fixture struct {
	svc    authdomain.Service
	db     *gorm.DB
	clock  *clock.FakeClock
	mailer *captureMailer
	audit  *recordingAudit
	repo   authdomain.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn := testutil.NewDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	mailer := &captureMailer{}
	audit := &recordingAudit{}
	repo := repository.New(conn)

	svc := New(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    testutil.NewNode(t),
		Clock:    clk,
		Repo:     repo,
		UserRepo: userrepository.Provide(),
		Issuer:   token.NewIssuer(config.Config{JWTSecret: "test-secret"}, clk),
		Mailer:   mailer,
		AuditSvc: audit,
	})
	return fixture{svc: svc, db: conn, clock: clk, mailer: mailer, audit: audit, repo: repo}
}

func (f fixture) register(t *testing.T, email string) {
	t.Helper()
	_, err := f.svc.Register(context.Background(), authdomain.RegisterRequest{
		Name:     "Nguyen Van A",
		Email:    email,
		Password: "secret123",
	})
	require.NoError(t, err)
}

func TestRegisterNormalizesAndRejectsDuplicate(t *testing.T) {
	f := newFixture(t)

	user, err := f.svc.Register(context.Background(), authdomain.RegisterRequest{
		Name:     "  Lan  ",
		Email:    " Lan@Example.COM ",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "lan@example.com", user.Email)
	assert.Equal(t, "Lan", user.Name)
	assert.Equal(t, actorcontext.RoleCustomer, user.Role)
	assert.True(t, user.IsActive)

	_, err = f.svc.Register(context.Background(), authdomain.RegisterRequest{
		Name: "Other", Email: "lan@example.com", Password: "secret123",
	})
	if !errors.Is(err, authdomain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	_, err = f.svc.Register(context.Background(), authdomain.RegisterRequest{
		Name: "Short", Email: "short@example.com", Password: "12345",
	})
	if !errors.Is(err, authdomain.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com")

	_, err := f.svc.Login(context.Background(), authdomain.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	if !errors.Is(err, authdomain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	assert.Equal(t, []string{auditdomain.ActionAuthLoginFailed}, f.audit.actions)

	res, err := f.svc.Login(context.Background(), authdomain.LoginRequest{Email: "ALICE@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, f.clock.Now().Add(authdomain.SessionTTL), res.ExpiresAt)

	remembered, err := f.svc.Login(context.Background(), authdomain.LoginRequest{Email: "alice@example.com", Password: "secret123", Remember: true})
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(authdomain.RememberSessionTTL), remembered.ExpiresAt)

	actor, err := f.svc.Authenticate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, actor.UserID)
	assert.Equal(t, actorcontext.RoleCustomer, actor.Role)
}

func TestLoginInactiveAccount(t *testing.T) {
	f := newFixture(t)
	f.register(t, "bob@example.com")
	require.NoError(t, f.db.Exec("UPDATE users SET is_active = ? WHERE email = ?", false, "bob@example.com").Error)

	_, err := f.svc.Login(context.Background(), authdomain.LoginRequest{Email: "bob@example.com", Password: "secret123"})
	if !errors.Is(err, authdomain.ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

func TestAuthenticateUsesStoredRole(t *testing.T) {
	f := newFixture(t)
	f.register(t, "carol@example.com")

	res, err := f.svc.Login(context.Background(), authdomain.LoginRequest{Email: "carol@example.com", Password: "secret123"})
	require.NoError(t, err)

	require.NoError(t, f.db.Exec("UPDATE users SET role = ? WHERE id = ?", actorcontext.RoleEmployee, res.User.ID).Error)
	actor, err := f.svc.Authenticate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, actorcontext.RoleEmployee, actor.Role)

	require.NoError(t, f.db.Exec("UPDATE users SET is_active = ? WHERE id = ?", false, res.User.ID).Error)
	_, err = f.svc.Authenticate(context.Background(), res.Token)
	assert.ErrorIs(t, err, authdomain.ErrAccountInactive)

	f.clock.Advance(authdomain.SessionTTL + time.Second)
	_, err = f.svc.Authenticate(context.Background(), res.Token)
	assert.ErrorIs(t, err, authdomain.ErrTokenExpired)
}

func TestRequestOTPUnknownEmail(t *testing.T) {
	f := newFixture(t)
	err := f.svc.RequestOTP(context.Background(), "nobody@example.com")
	if !errors.Is(err, authdomain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestOTPExpiry(t *testing.T) {
	f := newFixture(t)
	f.register(t, "dung@example.com")

	require.NoError(t, f.svc.RequestOTP(context.Background(), "dung@example.com"))
	otp := f.mailer.lastOTP(t)
	assert.Len(t, otp, 6)

	require.NoError(t, f.svc.VerifyOTP(context.Background(), "dung@example.com", otp))

	f.clock.Advance(5 * time.Minute)
	err := f.svc.VerifyOTP(context.Background(), "dung@example.com", otp)
	if !errors.Is(err, authdomain.ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}

	err = f.svc.VerifyOTP(context.Background(), "dung@example.com", "000000x")
	if !errors.Is(err, authdomain.ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}
}

func TestOTPLatestRecordWins(t *testing.T) {
	f := newFixture(t)
	f.register(t, "em@example.com")
	ctx := context.Background()
	now := f.clock.Now()

	require.NoError(t, f.repo.CreateReset(ctx, &authdomain.PasswordReset{
		ID: 1, Email: "em@example.com", OTP: "123456",
		ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-10 * time.Minute),
	}))
	err := f.svc.VerifyOTP(ctx, "em@example.com", "123456")
	require.ErrorIs(t, err, authdomain.ErrOTPExpired)

	require.NoError(t, f.repo.CreateReset(ctx, &authdomain.PasswordReset{
		ID: 2, Email: "em@example.com", OTP: "123456",
		ExpiresAt: now.Add(5 * time.Minute), CreatedAt: now,
	}))
	require.NoError(t, f.svc.VerifyOTP(ctx, "em@example.com", "123456"))
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "giang@example.com")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestOTP(ctx, "giang@example.com"))
	otp := f.mailer.lastOTP(t)

	require.NoError(t, f.svc.ResetPassword(ctx, authdomain.ResetPasswordRequest{
		Email: "giang@example.com", OTP: otp, NewPassword: "brand-new-pass",
	}))
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM password_resets WHERE email = ?", 0, "giang@example.com")

	var hash string
	require.NoError(t, f.db.Raw("SELECT password_hash FROM users WHERE email = ?", "giang@example.com").Scan(&hash).Error)
	assert.True(t, password.Verify("brand-new-pass", hash))

	err := f.svc.ResetPassword(ctx, authdomain.ResetPasswordRequest{
		Email: "giang@example.com", OTP: otp, NewPassword: "another-pass",
	})
	assert.ErrorIs(t, err, authdomain.ErrInvalidOTP)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	user, err := f.svc.Register(context.Background(), authdomain.RegisterRequest{
		Name: "Hoa", Email: "hoa@example.com", Password: "secret123",
	})
	require.NoError(t, err)

	phone := " 0901234567 "
	avatar := "/uploads/avatar.png"
	updated, err := f.svc.UpdateProfile(context.Background(), authdomain.UpdateProfileRequest{
		UserID: user.ID,
		Phone:  &phone,
		Avatar: &avatar,
	})
	require.NoError(t, err)
	assert.Equal(t, "0901234567", updated.Phone)
	assert.Equal(t, avatar, updated.Avatar)
	assert.Equal(t, "Hoa", updated.Name)

	empty := "  "
	_, err = f.svc.UpdateProfile(context.Background(), authdomain.UpdateProfileRequest{UserID: user.ID, Name: &empty})
	assert.ErrorIs(t, err, authdomain.ErrInvalidName)
}
