package authorization

import (
	"context"
	"errors"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

const (
	RoleDormAdmin    = "dorm_admin"
	RoleFloorManager = "floor_manager"
	RoleResident     = "resident"
	RoleSystem       = "system"
)

const (
	ObjectFridgeAllocation = "fridge_allocation"
	ObjectFridgeTopology   = "fridge_topology"
	ObjectAuditLog         = "audit_log"
)

const (
	ActionAllocationPreview = "fridge_allocation.preview"
	ActionAllocationApply   = "fridge_allocation.apply"
	ActionAllocationForce   = "fridge_allocation.force"

	ActionTopologyView   = "fridge_topology.view"
	ActionTopologyManage = "fridge_topology.manage"

	ActionAuditLogView = "audit_log.view"
)

// Actor is the caller as asserted by the upstream gateway. ID may be empty for
// anonymous role-only calls.
type Actor struct {
	Role string
	ID   string
}

type Service interface {
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}

func ValidRole(role string) bool {
	switch role {
	case RoleDormAdmin, RoleFloorManager, RoleResident, RoleSystem:
		return true
	default:
		return false
	}
}
