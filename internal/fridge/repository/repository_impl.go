package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListUnits(ctx context.Context, db *gorm.DB, floor int) ([]domain.FridgeUnit, error) {
	var units []domain.FridgeUnit
	err := db.WithContext(ctx).
		Where("floor = ?", floor).
		Order("id asc").
		Find(&units).Error
	if err != nil {
		return nil, err
	}
	return units, nil
}

func (r *repo) FindUnitByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.FridgeUnit, error) {
	var unit domain.FridgeUnit
	err := db.WithContext(ctx).Where("id = ?", id).Take(&unit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repo) ListCompartments(ctx context.Context, db *gorm.DB, unitID snowflake.ID) ([]domain.FridgeCompartment, error) {
	return r.ListCompartmentsByUnits(ctx, db, []snowflake.ID{unitID})
}

func (r *repo) ListCompartmentsByUnits(ctx context.Context, db *gorm.DB, unitIDs []snowflake.ID) ([]domain.FridgeCompartment, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	var compartments []domain.FridgeCompartment
	err := db.WithContext(ctx).
		Where("unit_id IN ?", unitIDs).
		Order("unit_id asc, slot_index asc").
		Find(&compartments).Error
	if err != nil {
		return nil, err
	}
	return compartments, nil
}

func (r *repo) FindCompartmentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.FridgeCompartment, error) {
	var compartment domain.FridgeCompartment
	err := db.WithContext(ctx).Where("id = ?", id).Take(&compartment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &compartment, nil
}

func (r *repo) ListCompartmentsByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.FridgeCompartment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var compartments []domain.FridgeCompartment
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&compartments).Error
	if err != nil {
		return nil, err
	}
	return compartments, nil
}

// LockCompartments reads the compartments with their unit floor, taking row
// locks where the dialect supports SELECT ... FOR UPDATE.
func (r *repo) LockCompartments(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.LockedCompartment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	stmt := db.WithContext(ctx).
		Table("fridge_compartments").
		Select("fridge_compartments.*, fridge_units.floor AS floor").
		Joins("JOIN fridge_units ON fridge_units.id = fridge_compartments.unit_id").
		Where("fridge_compartments.id IN ?", ids).
		Order("fridge_compartments.id asc")
	if supportsRowLocks(db) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "fridge_compartments"}})
	}

	var locked []domain.LockedCompartment
	if err := stmt.Scan(&locked).Error; err != nil {
		return nil, err
	}
	return locked, nil
}

func (r *repo) ListRooms(ctx context.Context, db *gorm.DB, floor int) ([]domain.Room, error) {
	var rooms []domain.Room
	err := db.WithContext(ctx).
		Where("floor = ?", floor).
		Order("room_number asc, id asc").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *repo) ListRoomsByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Room, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rooms []domain.Room
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *repo) ActiveAssignments(ctx context.Context, db *gorm.DB, compartmentID snowflake.ID) ([]domain.RoomCompartmentAssignment, error) {
	return r.ActiveAssignmentsByCompartments(ctx, db, []snowflake.ID{compartmentID})
}

func (r *repo) ActiveAssignmentsByCompartments(ctx context.Context, db *gorm.DB, compartmentIDs []snowflake.ID) ([]domain.RoomCompartmentAssignment, error) {
	if len(compartmentIDs) == 0 {
		return nil, nil
	}
	var assignments []domain.RoomCompartmentAssignment
	err := db.WithContext(ctx).
		Where("compartment_id IN ? AND revoked_at IS NULL", compartmentIDs).
		Order("assigned_at asc, id asc").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repo) ActiveAssignmentsByRooms(ctx context.Context, db *gorm.DB, roomIDs []snowflake.ID) ([]domain.RoomCompartmentAssignment, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	var assignments []domain.RoomCompartmentAssignment
	err := db.WithContext(ctx).
		Where("room_id IN ? AND revoked_at IS NULL", roomIDs).
		Order("assigned_at asc, id asc").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repo) RevokeAssignment(ctx context.Context, db *gorm.DB, roomID, compartmentID snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.RoomCompartmentAssignment{}).
		Where("room_id = ? AND compartment_id = ? AND revoked_at IS NULL", roomID, compartmentID).
		Update("revoked_at", at).Error
}

func (r *repo) CreateAssignment(ctx context.Context, db *gorm.DB, assignment *domain.RoomCompartmentAssignment) error {
	return db.WithContext(ctx).Create(assignment).Error
}

func (r *repo) InsertUnit(ctx context.Context, db *gorm.DB, unit *domain.FridgeUnit) error {
	return db.WithContext(ctx).Create(unit).Error
}

func (r *repo) InsertCompartment(ctx context.Context, db *gorm.DB, compartment *domain.FridgeCompartment) error {
	return db.WithContext(ctx).Create(compartment).Error
}

func (r *repo) UpdateCompartment(ctx context.Context, db *gorm.DB, compartment *domain.FridgeCompartment) error {
	return db.WithContext(ctx).
		Model(&domain.FridgeCompartment{}).
		Where("id = ?", compartment.ID).
		Updates(map[string]any{
			"status":            compartment.Status,
			"locked":            compartment.Locked,
			"label_range_start": compartment.LabelRangeStart,
			"label_range_end":   compartment.LabelRangeEnd,
			"updated_at":        compartment.UpdatedAt,
		}).Error
}

func (r *repo) UpdateSlot(ctx context.Context, db *gorm.DB, id snowflake.ID, slotIndex int, slotCode string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.FridgeCompartment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"slot_index": slotIndex,
			"slot_code":  slotCode,
			"updated_at": at,
		}).Error
}

func (r *repo) InsertRoom(ctx context.Context, db *gorm.DB, room *domain.Room) error {
	return db.WithContext(ctx).Create(room).Error
}

func supportsRowLocks(db *gorm.DB) bool {
	return !strings.EqualFold(db.Dialector.Name(), "sqlite")
}
