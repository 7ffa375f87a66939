package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/actorcontext"
	auditdomain "github.com/smallbiznis/qatech/internal/audit/domain"
	"github.com/smallbiznis/qatech/internal/auth/password"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/user/domain"
	"github.com/smallbiznis/qatech/pkg/db"
	"github.com/smallbiznis/qatech/pkg/db/pagination"
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
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("user.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	page := pagination.Page{Page: req.Page, Limit: req.Limit}.Normalize(10, 100)

	role := strings.TrimSpace(req.Role)
	if role != "" && !actorcontext.ValidRole(role) {
		return domain.ListResponse{}, domain.ErrInvalidRole
	}

	users, total, err := s.repo.List(ctx, s.db, domain.ListFilter{
		Search:   req.Search,
		Role:     role,
		IsActive: req.IsActive,
		Limit:    page.Limit,
		Offset:   page.Offset(),
	})
	if err != nil {
		return domain.ListResponse{}, err
	}
	if users == nil {
		users = []domain.User{}
	}

	totalPages := pagination.TotalPages(total, page.Limit)
	return domain.ListResponse{
		Users: users,
		Pagination: domain.Pagination{
			CurrentPage: page.Page,
			TotalPages:  totalPages,
			TotalUsers:  total,
			HasMore:     page.Page < totalPages,
		},
	}, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Detail, error) {
	user, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.Detail{}, err
	}
	orders, err := s.repo.CountOrders(ctx, s.db, id)
	if err != nil {
		return domain.Detail{}, err
	}
	reviews, err := s.repo.CountReviews(ctx, s.db, id)
	if err != nil {
		return domain.Detail{}, err
	}
	return domain.Detail{User: *user, OrderCount: orders, ReviewCount: reviews}, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.User{}, domain.ErrInvalidName
	}
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return domain.User{}, err
	}
	if len(req.Password) < domain.MinPasswordLength {
		return domain.User{}, domain.ErrInvalidPassword
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = actorcontext.RoleCustomer
	}
	if !actorcontext.ValidRole(role) {
		return domain.User{}, domain.ErrInvalidRole
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.User{}, err
	}
	if existing != nil {
		return domain.User{}, domain.ErrEmailTaken
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := s.clock.Now()
	user := domain.User{
		ID:           s.genID.Generate(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Phone:        strings.TrimSpace(req.Phone),
		Address:      strings.TrimSpace(req.Address),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *Service) Update(ctx context.Context, actor actorcontext.Actor, id snowflake.ID, req domain.UpdateRequest) (domain.User, error) {
	user, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.User{}, domain.ErrInvalidName
		}
		fields["name"] = name
	}
	if req.Email != nil {
		email, err := NormalizeEmail(*req.Email)
		if err != nil {
			return domain.User{}, err
		}
		if email != user.Email {
			if actor.UserID == id {
				return domain.User{}, domain.ErrSelfEmailChange
			}
			taken, err := s.repo.FindByEmail(ctx, s.db, email)
			if err != nil {
				return domain.User{}, err
			}
			if taken != nil && taken.ID != id {
				return domain.User{}, domain.ErrEmailTaken
			}
			fields["email"] = email
		}
	}
	if req.Phone != nil {
		fields["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		fields["address"] = strings.TrimSpace(*req.Address)
	}
	if len(fields) == 0 {
		return *user, nil
	}
	fields["updated_at"] = s.clock.Now()

	if err := s.repo.UpdateFields(ctx, s.db, id, fields); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, err
	}
	return s.reload(ctx, id)
}

func (s *Service) UpdateRole(ctx context.Context, actor actorcontext.Actor, id snowflake.ID, role string) (domain.User, error) {
	role = strings.TrimSpace(role)
	if !actorcontext.ValidRole(role) {
		return domain.User{}, domain.ErrInvalidRole
	}
	if actor.UserID == id {
		return domain.User{}, domain.ErrSelfRoleChange
	}
	user, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user.Role == role {
		return *user, nil
	}

	if err := s.repo.UpdateFields(ctx, s.db, id, map[string]any{
		"role":       role,
		"updated_at": s.clock.Now(),
	}); err != nil {
		return domain.User{}, err
	}

	s.audit(ctx, actor, auditdomain.ActionUserRoleChanged, id, map[string]any{
		"from": user.Role,
		"to":   role,
	})
	return s.reload(ctx, id)
}

func (s *Service) UpdateStatus(ctx context.Context, actor actorcontext.Actor, id snowflake.ID, isActive bool) (domain.User, error) {
	if actor.UserID == id && !isActive {
		return domain.User{}, domain.ErrSelfDeactivate
	}
	user, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user.IsActive == isActive {
		return *user, nil
	}

	if err := s.repo.UpdateFields(ctx, s.db, id, map[string]any{
		"is_active":  isActive,
		"updated_at": s.clock.Now(),
	}); err != nil {
		return domain.User{}, err
	}

	s.audit(ctx, actor, auditdomain.ActionUserStatusChanged, id, map[string]any{
		"is_active": isActive,
	})
	return s.reload(ctx, id)
}

func (s *Service) Delete(ctx context.Context, actor actorcontext.Actor, id snowflake.ID) error {
	if actor.UserID == id {
		return domain.ErrSelfDelete
	}

	var deleted *domain.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		orders, err := s.repo.CountOrders(ctx, tx, id)
		if err != nil {
			return err
		}
		if orders > 0 {
			return domain.ErrUserHasOrders
		}
		if err := s.repo.DeleteReviews(ctx, tx, id); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		deleted = user
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, actor, auditdomain.ActionUserDeleted, id, map[string]any{
		"email": deleted.Email,
		"role":  deleted.Role,
	})
	return nil
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.User, error) {
	if id == 0 {
		return nil, domain.ErrNotFound
	}
	user, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (s *Service) reload(ctx context.Context, id snowflake.ID) (domain.User, error) {
	user, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

func (s *Service) audit(ctx context.Context, actor actorcontext.Actor, action string, target snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actorID := actor.UserID.String()
	targetID := target.String()
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &actorID, action, "user", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

// NormalizeEmail trims, lower-cases and validates an address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}
