package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/dormitory/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	Audit    auditdomain.Recorder `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	audit    auditdomain.Recorder
}

// NewEnforcer persists policies in casbin_rule through the gorm adapter.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	return NewEnforcerWithAdapter(adapter)
}

// NewEnforcerWithAdapter builds the enforcer and seeds the role policies. A nil
// adapter keeps everything in memory.
func NewEnforcerWithAdapter(adapter persist.Adapter) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter == nil {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	}
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(adapter != nil)
	enforcer.EnableAutoBuildRoleLinks(true)
	if adapter != nil {
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
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
		audit:    p.Audit,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, object string, action string) error {
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	if role == "" {
		return ErrInvalidActor
	}
	if !ValidRole(role) {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	roleName := "role:" + role
	subject := roleName
	if id := strings.TrimSpace(actor.ID); id != "" {
		subject = "actor:" + id
		if err := s.ensureGrouping(subject, roleName); err != nil {
			return err
		}
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.record(ctx, "authorization.denied", actor, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.record(ctx, "authorization.granted", actor, object, action)
	}
	return nil
}

// ensureGrouping binds subject to exactly one role; a role change drops the
// previous binding.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) record(ctx context.Context, auditAction string, actor Actor, object string, action string) {
	if s.audit == nil {
		return
	}
	var actorID *string
	if id := strings.TrimSpace(actor.ID); id != "" {
		actorID = &id
	}
	err := s.audit.Record(ctx, auditAction, "authorization", object, actorID, nil, map[string]any{
		"object": object,
		"action": action,
		"role":   actor.Role,
	})
	if err != nil {
		s.log.Warn("failed to record authorization audit", zap.String("action", auditAction), zap.Error(err))
	}
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionAllocationForce, ActionTopologyManage:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Residents may look at the recommendation and the fridges
		{"role:" + RoleResident, ObjectFridgeAllocation, ActionAllocationPreview},
		{"role:" + RoleResident, ObjectFridgeTopology, ActionTopologyView},

		{"role:" + RoleFloorManager, ObjectFridgeAllocation, ActionAllocationPreview},
		{"role:" + RoleFloorManager, ObjectFridgeAllocation, ActionAllocationApply},
		{"role:" + RoleFloorManager, ObjectFridgeTopology, ActionTopologyView},

		{"role:" + RoleDormAdmin, ObjectFridgeAllocation, ActionAllocationPreview},
		{"role:" + RoleDormAdmin, ObjectFridgeAllocation, ActionAllocationApply},
		{"role:" + RoleDormAdmin, ObjectFridgeAllocation, ActionAllocationForce},
		{"role:" + RoleDormAdmin, ObjectFridgeTopology, ActionTopologyView},
		{"role:" + RoleDormAdmin, ObjectFridgeTopology, ActionTopologyManage},
		{"role:" + RoleDormAdmin, ObjectAuditLog, ActionAuditLogView},

		{"role:" + RoleSystem, ObjectFridgeAllocation, ActionAllocationPreview},
		{"role:" + RoleSystem, ObjectFridgeAllocation, ActionAllocationApply},
		{"role:" + RoleSystem, ObjectFridgeAllocation, ActionAllocationForce},
		{"role:" + RoleSystem, ObjectFridgeTopology, ActionTopologyView},
		{"role:" + RoleSystem, ObjectFridgeTopology, ActionTopologyManage},
		{"role:" + RoleSystem, ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return fmt.Errorf("seed policy %v: %w", policy, err)
		}
	}
	return nil
}
