package domain

import "context"

type Repository interface {
	CreateReset(ctx context.Context, reset *PasswordReset) error
	// LatestReset returns the newest record for (email, otp), or ErrInvalidOTP.
	LatestReset(ctx context.Context, email, otp string) (*PasswordReset, error)
	DeleteResets(ctx context.Context, email string) error
}
