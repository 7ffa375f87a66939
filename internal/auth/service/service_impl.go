package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/actorcontext"
	auditdomain "github.com/smallbiznis/qatech/internal/audit/domain"
	"github.com/smallbiznis/qatech/internal/auth/domain"
	"github.com/smallbiznis/qatech/internal/auth/password"
	"github.com/smallbiznis/qatech/internal/auth/token"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/config"
	"github.com/smallbiznis/qatech/internal/providers/email"
	userdomain "github.com/smallbiznis/qatech/internal/user/domain"
	userservice "github.com/smallbiznis/qatech/internal/user/service"
	"github.com/smallbiznis/qatech/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	UserRepo userdomain.Repository
	Issuer   *token.Issuer
	Mailer   email.Provider

	AuditSvc   auditdomain.Service      `optional:"true"`
	Storefront *config.StorefrontHolder `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	userRepo   userdomain.Repository
	issuer     *token.Issuer
	mailer     email.Provider
	auditSvc   auditdomain.Service
	storefront *config.StorefrontHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("auth.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		userRepo:   p.UserRepo,
		issuer:     p.Issuer,
		mailer:     p.Mailer,
		auditSvc:   p.AuditSvc,
		storefront: p.Storefront,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (userdomain.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return userdomain.User{}, domain.ErrInvalidName
	}
	address, err := normalizeEmail(req.Email)
	if err != nil {
		return userdomain.User{}, err
	}
	if len(req.Password) < userdomain.MinPasswordLength {
		return userdomain.User{}, domain.ErrInvalidPassword
	}

	existing, err := s.userRepo.FindByEmail(ctx, s.db, address)
	if err != nil {
		return userdomain.User{}, err
	}
	if existing != nil {
		return userdomain.User{}, domain.ErrUserExists
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return userdomain.User{}, err
	}

	now := s.clock.Now()
	user := userdomain.User{
		ID:           s.genID.Generate(),
		Name:         name,
		Email:        address,
		PasswordHash: hash,
		Role:         actorcontext.RoleCustomer,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Insert(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return userdomain.User{}, domain.ErrUserExists
		}
		return userdomain.User{}, err
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	address, err := normalizeEmail(req.Email)
	if err != nil || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByEmail(ctx, s.db, address)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.auditLoginFailed(ctx, address, "", req.IPAddress, "unknown_email")
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrAccountInactive
	}
	if !password.Verify(req.Password, user.PasswordHash) {
		s.auditLoginFailed(ctx, address, user.ID.String(), req.IPAddress, "wrong_password")
		return nil, domain.ErrInvalidCredentials
	}

	if password.NeedsRehash(user.PasswordHash) {
		if hash, err := password.Hash(req.Password); err == nil {
			if err := s.userRepo.UpdateFields(ctx, s.db, user.ID, map[string]any{"password_hash": hash}); err != nil {
				s.log.Warn("password rehash failed", zap.String("user_id", user.ID.String()), zap.Error(err))
			} else {
				user.PasswordHash = hash
			}
		}
	}

	ttl := domain.SessionTTL
	if req.Remember {
		ttl = domain.RememberSessionTTL
	}
	signed, expiresAt, err := s.issuer.Issue(user.ID, user.Role, ttl)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResult{Token: signed, ExpiresAt: expiresAt, User: *user}, nil
}

func (s *Service) RequestOTP(ctx context.Context, rawEmail string) error {
	address, err := normalizeEmail(rawEmail)
	if err != nil {
		return err
	}
	user, err := s.userRepo.FindByEmail(ctx, s.db, address)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrUserNotFound
	}
	if !user.IsActive {
		return domain.ErrAccountInactive
	}

	settings := s.storefront.Get()
	otp, err := generateOTP(settings.OTPLength)
	if err != nil {
		return err
	}
	ttl := time.Duration(settings.OTPTTLMinutes) * time.Minute
	now := s.clock.Now()
	reset := domain.PasswordReset{
		ID:        s.genID.Generate(),
		Email:     address,
		OTP:       otp,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.repo.CreateReset(ctx, &reset); err != nil {
		return err
	}

	err = s.mailer.SendTemplate(ctx, []string{address}, email.TemplatePasswordOTP, map[string]any{
		"StoreName":  "QATech",
		"Name":       user.Name,
		"OTP":        otp,
		"TTLMinutes": settings.OTPTTLMinutes,
	})
	if err != nil {
		s.log.Error("send otp email failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) VerifyOTP(ctx context.Context, rawEmail, otp string) error {
	_, err := s.verifyOTP(ctx, rawEmail, otp)
	return err
}

func (s *Service) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error {
	if len(req.NewPassword) < userdomain.MinPasswordLength {
		return domain.ErrInvalidPassword
	}
	address, err := s.verifyOTP(ctx, req.Email, req.OTP)
	if err != nil {
		return err
	}

	user, err := s.userRepo.FindByEmail(ctx, s.db, address)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrUserNotFound
	}

	hash, err := password.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	err = s.userRepo.UpdateFields(ctx, s.db, user.ID, map[string]any{
		"password_hash": hash,
		"updated_at":    s.clock.Now(),
	})
	if err != nil {
		return err
	}
	return s.repo.DeleteResets(ctx, address)
}

func (s *Service) UpdateProfile(ctx context.Context, req domain.UpdateProfileRequest) (userdomain.User, error) {
	user, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		return userdomain.User{}, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return userdomain.User{}, domain.ErrInvalidName
		}
		fields["name"] = name
	}
	if req.Phone != nil {
		fields["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		fields["address"] = strings.TrimSpace(*req.Address)
	}
	if req.Avatar != nil {
		fields["avatar"] = *req.Avatar
	}
	if req.Password != nil && *req.Password != "" {
		if len(*req.Password) < userdomain.MinPasswordLength {
			return userdomain.User{}, domain.ErrInvalidPassword
		}
		hash, err := password.Hash(*req.Password)
		if err != nil {
			return userdomain.User{}, err
		}
		fields["password_hash"] = hash
	}
	if len(fields) == 0 {
		return *user, nil
	}
	fields["updated_at"] = s.clock.Now()

	if err := s.userRepo.UpdateFields(ctx, s.db, user.ID, fields); err != nil {
		return userdomain.User{}, err
	}
	updated, err := s.loadUser(ctx, user.ID)
	if err != nil {
		return userdomain.User{}, err
	}
	return *updated, nil
}

func (s *Service) Me(ctx context.Context, userID snowflake.ID) (userdomain.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return userdomain.User{}, err
	}
	return *user, nil
}

// Authenticate trusts the token for identity only; role and active state
// come from the stored account.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (actorcontext.Actor, error) {
	claims, err := s.issuer.Parse(rawToken)
	if err != nil {
		return actorcontext.Actor{}, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return actorcontext.Actor{}, err
	}
	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return actorcontext.Actor{}, err
	}
	if user == nil {
		return actorcontext.Actor{}, domain.ErrInvalidToken
	}
	if !user.IsActive {
		return actorcontext.Actor{}, domain.ErrAccountInactive
	}
	return actorcontext.Actor{UserID: user.ID, Role: user.Role}, nil
}

func (s *Service) verifyOTP(ctx context.Context, rawEmail, otp string) (string, error) {
	address, err := normalizeEmail(rawEmail)
	if err != nil {
		return "", err
	}
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return "", domain.ErrInvalidOTP
	}
	reset, err := s.repo.LatestReset(ctx, address, otp)
	if err != nil {
		return "", err
	}
	if !s.clock.Now().Before(reset.ExpiresAt) {
		return "", domain.ErrOTPExpired
	}
	return address, nil
}

func (s *Service) loadUser(ctx context.Context, id snowflake.ID) (*userdomain.User, error) {
	user, err := s.userRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) auditLoginFailed(ctx context.Context, address, userID, ip, reason string) {
	if s.auditSvc == nil {
		return
	}
	var actorID *string
	if userID != "" {
		actorID = &userID
	}
	metadata := map[string]any{"email": address, "reason": reason}
	if ip != "" {
		metadata["ip_address"] = ip
	}
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), actorID, auditdomain.ActionAuthLoginFailed, "user", actorID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", auditdomain.ActionAuthLoginFailed), zap.Error(err))
	}
}

func normalizeEmail(raw string) (string, error) {
	address, err := userservice.NormalizeEmail(raw)
	if err != nil {
		if errors.Is(err, userdomain.ErrInvalidEmail) {
			return "", domain.ErrInvalidEmail
		}
		return "", err
	}
	return address, nil
}

func generateOTP(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
