package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/actorcontext"
	userdomain "github.com/smallbiznis/qatech/internal/user/domain"
)

const (
	SessionTTL         = 24 * time.Hour
	RememberSessionTTL = 7 * 24 * time.Hour
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (userdomain.User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	RequestOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, otp string) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (userdomain.User, error)
	Me(ctx context.Context, userID snowflake.ID) (userdomain.User, error)
	// Authenticate resolves a bearer token to the live account.
	Authenticate(ctx context.Context, rawToken string) (actorcontext.Actor, error)
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

type LoginRequest struct {
	Email     string
	Password  string
	Remember  bool
	IPAddress string
}

type LoginResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	User      userdomain.User `json:"user"`
}

type ResetPasswordRequest struct {
	Email       string
	OTP         string
	NewPassword string
}

// UpdateProfileRequest fields left nil are unchanged.
type UpdateProfileRequest struct {
	UserID   snowflake.ID
	Name     *string
	Phone    *string
	Address  *string
	Password *string
	Avatar   *string
}
