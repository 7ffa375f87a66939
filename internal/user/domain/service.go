package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/actorcontext"
)

type ListRequest struct {
	Search   string
	Role     string
	IsActive *bool
	Page     int
	Limit    int
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalUsers  int64 `json:"totalUsers"`
	HasMore     bool  `json:"hasMore"`
}

type ListResponse struct {
	Users      []User     `json:"users"`
	Pagination Pagination `json:"pagination"`
}

type CreateRequest struct {
	Name     string
	Email    string
	Password string
	Role     string
	Phone    string
	Address  string
}

type UpdateRequest struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

type Service interface {
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, id snowflake.ID) (Detail, error)
	Create(ctx context.Context, req CreateRequest) (User, error)
	Update(ctx context.Context, actor actorcontext.Actor, id snowflake.ID, req UpdateRequest) (User, error)
	UpdateRole(ctx context.Context, actor actorcontext.Actor, id snowflake.ID, role string) (User, error)
	UpdateStatus(ctx context.Context, actor actorcontext.Actor, id snowflake.ID, isActive bool) (User, error)
	Delete(ctx context.Context, actor actorcontext.Actor, id snowflake.ID) error
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidPassword = errors.New("invalid_password")
	ErrInvalidRole     = errors.New("invalid_role")
	ErrEmailTaken      = errors.New("email_taken")
	ErrSelfEmailChange = errors.New("cannot_change_own_email")
	ErrSelfRoleChange  = errors.New("cannot_change_own_role")
	ErrSelfDeactivate  = errors.New("cannot_deactivate_self")
	ErrSelfDelete      = errors.New("cannot_delete_self")
	ErrUserHasOrders   = errors.New("user_has_orders")
)

// MinPasswordLength applies to every password set through the API.
const MinPasswordLength = 6
