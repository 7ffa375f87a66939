package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/qatech/internal/actorcontext"
	auditdomain "github.com/smallbiznis/qatech/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrder     = "order"
	ObjectReview    = "review"
	ObjectPayment   = "payment"
	ObjectProduct   = "product"
	ObjectUser      = "user"
	ObjectDashboard = "dashboard"
	ObjectAuditLog  = "audit_log"
)

const (
	ActionOrderCreate       = "create"
	ActionOrderReadOwn      = "read_own"
	ActionOrderCancel       = "cancel"
	ActionOrderReadAll      = "read_all"
	ActionOrderUpdateStatus = "update_status"
	ActionOrderStatistics   = "statistics"

	ActionReviewCreate = "create"
	ActionReviewReply  = "reply"
	ActionReviewDelete = "delete"

	ActionPaymentCreate = "create"

	ActionProductReadInactive = "read_inactive"
	ActionProductManage       = "manage"

	ActionUserManage    = "manage"
	ActionDashboardView = "view"
	ActionAuditLogView  = "view"
)

const actionAuthorizationDenied = "authorization.denied"

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor actorcontext.Actor, object, action string) error {
	if actor.UserID == 0 || !actorcontext.ValidRole(actor.Role) {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(roleSubject(actor.Role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actor, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actor actorcontext.Actor, object, action string) {
	if s.auditSvc == nil {
		return
	}
	actorID := actor.UserID.String()
	targetID := object + ":" + action
	err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &actorID, actionAuthorizationDenied, "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
		"role":   actor.Role,
	})
	if err != nil {
		s.log.Warn("audit log failed", zap.String("action", actionAuthorizationDenied), zap.Error(err))
	}
}

func roleSubject(role string) string {
	return "role:" + role
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	customer := roleSubject(actorcontext.RoleCustomer)
	employee := roleSubject(actorcontext.RoleEmployee)
	admin := roleSubject(actorcontext.RoleAdmin)

	policies := [][]string{
		{customer, ObjectOrder, ActionOrderCreate},
		{customer, ObjectOrder, ActionOrderReadOwn},
		{customer, ObjectOrder, ActionOrderCancel},
		{customer, ObjectReview, ActionReviewCreate},
		{customer, ObjectPayment, ActionPaymentCreate},

		{employee, ObjectOrder, ActionOrderReadAll},
		{employee, ObjectOrder, ActionOrderUpdateStatus},
		{employee, ObjectReview, ActionReviewReply},
		{employee, ObjectReview, ActionReviewDelete},
		{employee, ObjectProduct, ActionProductReadInactive},

		{admin, ObjectProduct, ActionProductManage},
		{admin, ObjectUser, ActionUserManage},
		{admin, ObjectDashboard, ActionDashboardView},
		{admin, ObjectOrder, ActionOrderStatistics},
		{admin, ObjectAuditLog, ActionAuditLogView},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// admin ⊃ employee ⊃ customer
	inheritance := [][]string{
		{employee, customer},
		{admin, employee},
	}
	for _, rule := range inheritance {
		if _, err := enforcer.AddGroupingPolicy(rule); err != nil {
			return err
		}
	}
	return nil
}
