package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/smallbiznis/dormitory/internal/fridge/label"
	"gorm.io/gorm"
)

type demoCompartment struct {
	kind       domain.CompartmentType
	start, end int
}

type demoFloor struct {
	floor        int
	location     string
	compartments []demoCompartment
	rooms        []string
}

var demoFloors = []demoFloor{
	{
		floor:    1,
		location: "Kitchen 1F",
		compartments: []demoCompartment{
			{kind: domain.CompartmentTypeChill, start: 1, end: 40},
			{kind: domain.CompartmentTypeChill, start: 41, end: 80},
			{kind: domain.CompartmentTypeFreeze, start: 81, end: 120},
		},
		rooms: []string{"101", "102", "103", "104", "105", "106"},
	},
	{
		floor:    2,
		location: "Kitchen 2F",
		compartments: []demoCompartment{
			{kind: domain.CompartmentTypeChill, start: 1, end: 60},
			{kind: domain.CompartmentTypeFreeze, start: 61, end: 99},
		},
		rooms: []string{"201", "202", "203", "204"},
	},
}

// EnsureDemoTopology seeds a small two-floor topology. Floors that already have
// a unit are left untouched.
func EnsureDemoTopology(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, f := range demoFloors {
			if err := ensureFloorTx(ctx, tx, node, f, now); err != nil {
				return fmt.Errorf("seed floor %d: %w", f.floor, err)
			}
		}
		return nil
	})
}

func ensureFloorTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, f demoFloor, now time.Time) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&domain.FridgeUnit{}).Where("floor = ?", f.floor).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	unit := domain.FridgeUnit{
		ID:        node.Generate(),
		Floor:     f.floor,
		Location:  f.location,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&unit).Error; err != nil {
		return err
	}

	for i, spec := range f.compartments {
		code, err := label.SlotLetter(i)
		if err != nil {
			return err
		}
		c := domain.FridgeCompartment{
			ID:              node.Generate(),
			UnitID:          unit.ID,
			SlotIndex:       i,
			SlotCode:        code,
			CompartmentType: spec.kind,
			Status:          domain.CompartmentStatusActive,
			LabelRangeStart: spec.start,
			LabelRangeEnd:   spec.end,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.WithContext(ctx).Create(&c).Error; err != nil {
			return err
		}
	}

	for _, number := range f.rooms {
		var existing domain.Room
		err := tx.WithContext(ctx).Where("floor = ? AND room_number = ?", f.floor, number).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		room := domain.Room{
			ID:         node.Generate(),
			Floor:      f.floor,
			RoomNumber: number,
			CreatedAt:  now,
		}
		if err := tx.WithContext(ctx).Create(&room).Error; err != nil {
			return err
		}
	}
	return nil
}
