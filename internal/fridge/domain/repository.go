package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the topology read contract plus the assignment write contract.
// Every method takes the handle to run on so writes can share the caller's
// transaction.
type Repository interface {
	ListUnits(ctx context.Context, db *gorm.DB, floor int) ([]FridgeUnit, error)
	FindUnitByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FridgeUnit, error)
	ListCompartments(ctx context.Context, db *gorm.DB, unitID snowflake.ID) ([]FridgeCompartment, error)
	ListCompartmentsByUnits(ctx context.Context, db *gorm.DB, unitIDs []snowflake.ID) ([]FridgeCompartment, error)
	FindCompartmentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FridgeCompartment, error)
	ListCompartmentsByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]FridgeCompartment, error)
	LockCompartments(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]LockedCompartment, error)
	ListRooms(ctx context.Context, db *gorm.DB, floor int) ([]Room, error)
	ListRoomsByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Room, error)

	ActiveAssignments(ctx context.Context, db *gorm.DB, compartmentID snowflake.ID) ([]RoomCompartmentAssignment, error)
	ActiveAssignmentsByCompartments(ctx context.Context, db *gorm.DB, compartmentIDs []snowflake.ID) ([]RoomCompartmentAssignment, error)
	ActiveAssignmentsByRooms(ctx context.Context, db *gorm.DB, roomIDs []snowflake.ID) ([]RoomCompartmentAssignment, error)
	RevokeAssignment(ctx context.Context, db *gorm.DB, roomID, compartmentID snowflake.ID, at time.Time) error
	CreateAssignment(ctx context.Context, db *gorm.DB, assignment *RoomCompartmentAssignment) error

	InsertUnit(ctx context.Context, db *gorm.DB, unit *FridgeUnit) error
	InsertCompartment(ctx context.Context, db *gorm.DB, compartment *FridgeCompartment) error
	UpdateCompartment(ctx context.Context, db *gorm.DB, compartment *FridgeCompartment) error
	UpdateSlot(ctx context.Context, db *gorm.DB, id snowflake.ID, slotIndex int, slotCode string, at time.Time) error
	InsertRoom(ctx context.Context, db *gorm.DB, room *Room) error
}
