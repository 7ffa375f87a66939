package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/actorcontext"
)

const (
	MinRating = 1
	MaxRating = 5
)

type ListRequest struct {
	ProductID snowflake.ID
	Page      int
	Limit     int
}

type Stats struct {
	AverageRating float64       `json:"averageRating"`
	TotalReviews  int64         `json:"totalReviews"`
	Distribution  map[int]int64 `json:"ratingDistribution"`
}

type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalReviews int64 `json:"totalReviews"`
	HasMore      bool  `json:"hasMore"`
}

type ListResponse struct {
	Reviews    []Review   `json:"reviews"`
	Stats      Stats      `json:"stats"`
	Pagination Pagination `json:"pagination"`
}

type PurchaseCheck struct {
	HasPurchased bool `json:"hasPurchased"`
	HasReviewed  bool `json:"hasReviewed"`
	CanReview    bool `json:"canReview"`
}

type CreateRequest struct {
	UserID    snowflake.ID
	ProductID snowflake.ID
	Rating    int
	Comment   string
}

type ReplyRequest struct {
	ReviewID snowflake.ID
	StaffID  snowflake.ID
	Reply    string
}

type Service interface {
	ListForProduct(ctx context.Context, req ListRequest) (ListResponse, error)
	CheckPurchase(ctx context.Context, userID, productID snowflake.ID) (PurchaseCheck, error)
	Create(ctx context.Context, req CreateRequest) (Review, error)
	Reply(ctx context.Context, req ReplyRequest) (Review, error)
	Delete(ctx context.Context, reviewID snowflake.ID, actor actorcontext.Actor) error
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidRating   = errors.New("invalid_rating")
	ErrInvalidComment  = errors.New("invalid_comment")
	ErrInvalidReply    = errors.New("invalid_reply")
	ErrProductNotFound = errors.New("product_not_found")
	ErrAlreadyReviewed = errors.New("already_reviewed")
	ErrNotPurchased    = errors.New("not_purchased")
	ErrForbidden       = errors.New("forbidden")
)
