package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type CompartmentType string

const (
	CompartmentTypeChill  CompartmentType = "chill"
	CompartmentTypeFreeze CompartmentType = "freeze"
)

func (t CompartmentType) Valid() bool {
	switch t {
	case CompartmentTypeChill, CompartmentTypeFreeze:
		return true
	default:
		return false
	}
}

type CompartmentStatus string

// Only CompartmentStatusActive participates in rebalancing; the other values are
// informational.
const (
	CompartmentStatusActive    CompartmentStatus = "active"
	CompartmentStatusSuspended CompartmentStatus = "suspended"
	CompartmentStatusReported  CompartmentStatus = "reported"
	CompartmentStatusRetired   CompartmentStatus = "retired"
)

func (s CompartmentStatus) Valid() bool {
	switch s {
	case CompartmentStatusActive, CompartmentStatusSuspended, CompartmentStatusReported, CompartmentStatusRetired:
		return true
	default:
		return false
	}
}

const (
	LabelNumberMin = 1
	LabelNumberMax = 999
)

type FridgeUnit struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Floor       int          `gorm:"not null;index" json:"floor"`
	Location    string       `gorm:"not null" json:"location"`
	DisplayName string       `gorm:"column:display_name" json:"display_name,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (FridgeUnit) TableName() string { return "fridge_units" }

type FridgeCompartment struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	UnitID          snowflake.ID      `gorm:"not null;uniqueIndex:ux_fridge_compartments_unit_slot,priority:1" json:"unit_id"`
	SlotIndex       int               `gorm:"not null;uniqueIndex:ux_fridge_compartments_unit_slot,priority:2" json:"slot_index"`
	SlotCode        string            `gorm:"not null" json:"slot_code"`
	CompartmentType CompartmentType   `gorm:"column:compartment_type;not null" json:"compartment_type"`
	Status          CompartmentStatus `gorm:"not null" json:"status"`
	Locked          bool              `gorm:"not null;default:false" json:"locked"`
	LabelRangeStart int               `gorm:"not null" json:"label_range_start"`
	LabelRangeEnd   int               `gorm:"not null" json:"label_range_end"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null" json:"updated_at"`
}

func (FridgeCompartment) TableName() string { return "fridge_compartments" }

// Rebalanceable reports whether the planner may move rooms in or out.
func (c FridgeCompartment) Rebalanceable() bool {
	return c.Status == CompartmentStatusActive && !c.Locked
}

// UnitWithCompartments is a materialized unit snapshot; Compartments are ordered
// by SlotIndex.
type UnitWithCompartments struct {
	FridgeUnit
	Compartments []FridgeCompartment `json:"compartments"`
}

type Room struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Floor      int          `gorm:"not null;uniqueIndex:ux_rooms_floor_number,priority:1" json:"floor"`
	RoomNumber string       `gorm:"column:room_number;not null;uniqueIndex:ux_rooms_floor_number,priority:2" json:"room_number"`
	RoomType   string       `gorm:"column:room_type" json:"room_type,omitempty"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (Room) TableName() string { return "rooms" }

// RoomCompartmentAssignment is active while RevokedAt is nil. Superseded rows are
// revoked, never deleted.
type RoomCompartmentAssignment struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	RoomID        snowflake.ID `gorm:"not null;index" json:"room_id"`
	CompartmentID snowflake.ID `gorm:"not null;index" json:"compartment_id"`
	AssignedAt    time.Time    `gorm:"not null" json:"assigned_at"`
	RevokedAt     *time.Time   `json:"revoked_at,omitempty"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

func (RoomCompartmentAssignment) TableName() string { return "room_compartment_assignments" }

func (a RoomCompartmentAssignment) Active() bool {
	return a.RevokedAt == nil
}

// LockedCompartment is a compartment row read under a row lock, together with
// the floor of its owning unit.
type LockedCompartment struct {
	FridgeCompartment
	Floor int `gorm:"column:floor"`
}
