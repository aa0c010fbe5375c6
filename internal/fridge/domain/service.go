package domain

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	WarningUnavailableForRebalancing = "compartment unavailable for rebalancing"
	WarningCapacityExceeded          = "capacity exceeded"
)

const AuditActionReallocationApply = "fridge.reallocation.apply"

type RoomView struct {
	ID         snowflake.ID `json:"id"`
	RoomNumber string       `json:"room_number"`
	RoomType   string       `json:"room_type,omitempty"`
}

type CompartmentPreview struct {
	ID                 snowflake.ID      `json:"id"`
	UnitID             snowflake.ID      `json:"unit_id"`
	SlotIndex          int               `json:"slot_index"`
	SlotLabel          string            `json:"slot_label"`
	CompartmentType    CompartmentType   `json:"compartment_type"`
	Status             CompartmentStatus `json:"status"`
	Locked             bool              `json:"locked"`
	LabelRange         string            `json:"label_range"`
	CurrentRoomIDs     []snowflake.ID    `json:"current_room_ids"`
	RecommendedRoomIDs []snowflake.ID    `json:"recommended_room_ids"`
	Warnings           []string          `json:"warnings"`
}

type PreviewResult struct {
	Floor                 int                  `json:"floor"`
	Rooms                 []RoomView           `json:"rooms"`
	Compartments          []CompartmentPreview `json:"compartments"`
	ChillCompartmentCount int                  `json:"chill_compartment_count"`
}

type Allocation struct {
	CompartmentID snowflake.ID
	RoomIDs       []snowflake.ID
	// Force applies the allocation even when the compartment is locked or not active.
	Force bool
}

type ApplyRequest struct {
	Floor       int
	Allocations []Allocation
}

type ApplyResult struct {
	Floor                int       `json:"floor"`
	AffectedCompartments int       `json:"affected_compartments"`
	ReleasedAssignments  int       `json:"released_assignments"`
	CreatedAssignments   int       `json:"created_assignments"`
	AppliedAt            time.Time `json:"applied_at"`
}

// AllocationService is the preview/apply reallocation engine.
type AllocationService interface {
	Preview(ctx context.Context, floor int) (PreviewResult, error)
	Apply(ctx context.Context, req ApplyRequest) (ApplyResult, error)
}

type CompartmentSpec struct {
	CompartmentType CompartmentType
	LabelRangeStart int
	LabelRangeEnd   int
	Locked          bool
}

type CreateUnitRequest struct {
	Floor        int
	Location     string
	DisplayName  string
	Compartments []CompartmentSpec
}

type CreateRoomRequest struct {
	Floor      int
	RoomNumber string
	RoomType   string
}

type UpdateCompartmentRequest struct {
	ID              string
	Locked          *bool
	Status          *CompartmentStatus
	LabelRangeStart *int
	LabelRangeEnd   *int
}

type ReorderRequest struct {
	UnitID         string
	CompartmentIDs []string
}

type RelabelResult struct {
	UnitID  snowflake.ID `json:"unit_id"`
	Changed int          `json:"changed"`
}

// TopologyService administers units, compartments and rooms.
type TopologyService interface {
	CreateUnit(ctx context.Context, req CreateUnitRequest) (UnitWithCompartments, error)
	ListUnits(ctx context.Context, floor int) ([]UnitWithCompartments, error)
	GetUnit(ctx context.Context, id string) (UnitWithCompartments, error)
	GetCompartment(ctx context.Context, id string) (FridgeCompartment, error)
	UpdateCompartment(ctx context.Context, req UpdateCompartmentRequest) (FridgeCompartment, error)
	ReorderCompartments(ctx context.Context, req ReorderRequest) (UnitWithCompartments, error)
	RelabelUnit(ctx context.Context, unitID string) (RelabelResult, error)
	CreateRoom(ctx context.Context, req CreateRoomRequest) (Room, error)
}

func ParseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
