package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/smallbiznis/dormitory/internal/fridge/label"
	pkgdb "github.com/smallbiznis/dormitory/pkg/db"
	"github.com/smallbiznis/dormitory/pkg/telemetry/correlation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	AuditActionUnitCreate        = "fridge.unit.create"
	AuditActionCompartmentUpdate = "fridge.compartment.update"
	AuditActionUnitReorder       = "fridge.unit.reorder"
	AuditActionUnitRelabel       = "fridge.unit.relabel"
	AuditActionRoomCreate        = "room.create"
)

func (s *Service) CreateUnit(ctx context.Context, req domain.CreateUnitRequest) (domain.UnitWithCompartments, error) {
	if req.Floor < 1 {
		return domain.UnitWithCompartments{}, domain.ErrInvalidFloor
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		return domain.UnitWithCompartments{}, domain.ErrInvalidLocation
	}
	if len(req.Compartments) == 0 {
		return domain.UnitWithCompartments{}, domain.ErrNoCompartments
	}
	for i, spec := range req.Compartments {
		if !spec.CompartmentType.Valid() {
			return domain.UnitWithCompartments{}, fmt.Errorf("%w: compartment %d", domain.ErrInvalidType, i)
		}
		if !label.ValidRange(spec.LabelRangeStart, spec.LabelRangeEnd) {
			return domain.UnitWithCompartments{}, fmt.Errorf("%w: compartment %d", domain.ErrInvalidLabelRange, i)
		}
	}

	now := s.clock.Now().UTC()
	out := domain.UnitWithCompartments{
		FridgeUnit: domain.FridgeUnit{
			ID:          s.genID.Generate(),
			Floor:       req.Floor,
			Location:    location,
			DisplayName: strings.TrimSpace(req.DisplayName),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertUnit(ctx, tx, &out.FridgeUnit); err != nil {
			return err
		}
		for i, spec := range req.Compartments {
			code, err := label.SlotLetter(i)
			if err != nil {
				return err
			}
			c := domain.FridgeCompartment{
				ID:              s.genID.Generate(),
				UnitID:          out.ID,
				SlotIndex:       i,
				SlotCode:        code,
				CompartmentType: spec.CompartmentType,
				Status:          domain.CompartmentStatusActive,
				Locked:          spec.Locked,
				LabelRangeStart: spec.LabelRangeStart,
				LabelRangeEnd:   spec.LabelRangeEnd,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := s.repo.InsertCompartment(ctx, tx, &c); err != nil {
				return err
			}
			out.Compartments = append(out.Compartments, c)
		}
		return nil
	})
	if err != nil {
		return domain.UnitWithCompartments{}, err
	}

	s.recordTopology(ctx, AuditActionUnitCreate, "fridge_unit", out.ID.String(), map[string]any{
		"floor":        out.Floor,
		"location":     out.Location,
		"compartments": len(out.Compartments),
	})
	return out, nil
}

// ListUnits returns the floor's units with compartments ordered by slot.
func (s *Service) ListUnits(ctx context.Context, floor int) ([]domain.UnitWithCompartments, error) {
	if floor < 1 {
		return nil, domain.ErrInvalidFloor
	}
	db := s.db.WithContext(ctx)

	units, err := s.repo.ListUnits(ctx, db, floor)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	compartments, err := s.repo.ListCompartmentsByUnits(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	byUnit := make(map[snowflake.ID][]domain.FridgeCompartment, len(units))
	for _, c := range compartments {
		byUnit[c.UnitID] = append(byUnit[c.UnitID], c)
	}

	out := make([]domain.UnitWithCompartments, 0, len(units))
	for _, u := range units {
		cs := byUnit[u.ID]
		if cs == nil {
			cs = []domain.FridgeCompartment{}
		}
		out = append(out, domain.UnitWithCompartments{FridgeUnit: u, Compartments: cs})
	}
	return out, nil
}

func (s *Service) GetUnit(ctx context.Context, id string) (domain.UnitWithCompartments, error) {
	unitID, err := domain.ParseID(id)
	if err != nil {
		return domain.UnitWithCompartments{}, err
	}
	db := s.db.WithContext(ctx)
	unit, err := s.repo.FindUnitByID(ctx, db, unitID)
	if err != nil {
		return domain.UnitWithCompartments{}, err
	}
	if unit == nil {
		return domain.UnitWithCompartments{}, domain.ErrUnitNotFound
	}
	compartments, err := s.repo.ListCompartments(ctx, db, unitID)
	if err != nil {
		return domain.UnitWithCompartments{}, err
	}
	if compartments == nil {
		compartments = []domain.FridgeCompartment{}
	}
	return domain.UnitWithCompartments{FridgeUnit: *unit, Compartments: compartments}, nil
}

func (s *Service) GetCompartment(ctx context.Context, id string) (domain.FridgeCompartment, error) {
	compartmentID, err := domain.ParseID(id)
	if err != nil {
		return domain.FridgeCompartment{}, err
	}
	c, err := s.repo.FindCompartmentByID(ctx, s.db.WithContext(ctx), compartmentID)
	if err != nil {
		return domain.FridgeCompartment{}, err
	}
	if c == nil {
		return domain.FridgeCompartment{}, domain.ErrCompartmentNotFound
	}
	return *c, nil
}

// UpdateCompartment changes the lock flag, status or label range. Slot
// position is changed only through ReorderCompartments.
func (s *Service) UpdateCompartment(ctx context.Context, req domain.UpdateCompartmentRequest) (domain.FridgeCompartment, error) {
	id, err := domain.ParseID(req.ID)
	if err != nil {
		return domain.FridgeCompartment{}, err
	}
	if req.Status != nil && !req.Status.Valid() {
		return domain.FridgeCompartment{}, domain.ErrInvalidStatus
	}

	var updated domain.FridgeCompartment
	changes := map[string]any{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.LockCompartments(ctx, tx, []snowflake.ID{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return domain.ErrCompartmentNotFound
		}
		c := locked[0].FridgeCompartment

		if req.Locked != nil && *req.Locked != c.Locked {
			changes["locked"] = *req.Locked
			c.Locked = *req.Locked
		}
		if req.Status != nil && *req.Status != c.Status {
			changes["status"] = string(*req.Status)
			c.Status = *req.Status
		}
		start, end := c.LabelRangeStart, c.LabelRangeEnd
		if req.LabelRangeStart != nil {
			start = *req.LabelRangeStart
		}
		if req.LabelRangeEnd != nil {
			end = *req.LabelRangeEnd
		}
		if !label.ValidRange(start, end) {
			return domain.ErrInvalidLabelRange
		}
		if start != c.LabelRangeStart || end != c.LabelRangeEnd {
			changes["label_range"] = label.RangeText(start, end)
			c.LabelRangeStart, c.LabelRangeEnd = start, end
		}

		updated = c
		if len(changes) == 0 {
			return nil
		}
		updated.UpdatedAt = s.clock.Now().UTC()
		return s.repo.UpdateCompartment(ctx, tx, &updated)
	})
	if err != nil {
		return domain.FridgeCompartment{}, err
	}

	if len(changes) > 0 {
		changes["unit_id"] = updated.UnitID.String()
		s.recordTopology(ctx, AuditActionCompartmentUpdate, "fridge_compartment", updated.ID.String(), changes)
	}
	return updated, nil
}

// ReorderCompartments assigns slot indices 0..n-1 in the given order. The list
// must name every compartment of the unit exactly once.
func (s *Service) ReorderCompartments(ctx context.Context, req domain.ReorderRequest) (domain.UnitWithCompartments, error) {
	unitID, err := domain.ParseID(req.UnitID)
	if err != nil {
		return domain.UnitWithCompartments{}, err
	}
	order := make([]snowflake.ID, 0, len(req.CompartmentIDs))
	for _, raw := range req.CompartmentIDs {
		id, err := domain.ParseID(raw)
		if err != nil {
			return domain.UnitWithCompartments{}, err
		}
		order = append(order, id)
	}

	var out domain.UnitWithCompartments
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unit, err := s.repo.FindUnitByID(ctx, tx, unitID)
		if err != nil {
			return err
		}
		if unit == nil {
			return domain.ErrUnitNotFound
		}
		existing, err := s.repo.ListCompartments(ctx, tx, unitID)
		if err != nil {
			return err
		}
		if !isPermutation(existing, order) {
			return domain.ErrReorderMismatch
		}

		byID := make(map[snowflake.ID]domain.FridgeCompartment, len(existing))
		for _, c := range existing {
			byID[c.ID] = c
		}

		now := s.clock.Now().UTC()
		// Park every row on a negative index first so the (unit_id, slot_index)
		// unique index holds between the two passes.
		for i, id := range order {
			if err := s.repo.UpdateSlot(ctx, tx, id, -(i + 1), byID[id].SlotCode, now); err != nil {
				return err
			}
		}
		out = domain.UnitWithCompartments{FridgeUnit: *unit}
		for i, id := range order {
			code, err := label.SlotLetter(i)
			if err != nil {
				return err
			}
			if err := s.repo.UpdateSlot(ctx, tx, id, i, code, now); err != nil {
				return err
			}
			c := byID[id]
			c.SlotIndex, c.SlotCode, c.UpdatedAt = i, code, now
			out.Compartments = append(out.Compartments, c)
		}
		return nil
	})
	if err != nil {
		return domain.UnitWithCompartments{}, err
	}

	ids := make([]string, 0, len(order))
	for _, id := range order {
		ids = append(ids, id.String())
	}
	s.recordTopology(ctx, AuditActionUnitReorder, "fridge_unit", unitID.String(), map[string]any{
		"compartment_ids": ids,
	})
	return out, nil
}

// RelabelUnit rewrites slot codes that drifted from their slot index. Running
// it again changes nothing.
func (s *Service) RelabelUnit(ctx context.Context, rawUnitID string) (domain.RelabelResult, error) {
	unitID, err := domain.ParseID(rawUnitID)
	if err != nil {
		return domain.RelabelResult{}, err
	}

	result := domain.RelabelResult{UnitID: unitID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unit, err := s.repo.FindUnitByID(ctx, tx, unitID)
		if err != nil {
			return err
		}
		if unit == nil {
			return domain.ErrUnitNotFound
		}
		compartments, err := s.repo.ListCompartments(ctx, tx, unitID)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		for _, c := range compartments {
			code, err := label.SlotLetter(c.SlotIndex)
			if err != nil {
				return err
			}
			if code == c.SlotCode {
				continue
			}
			if err := s.repo.UpdateSlot(ctx, tx, c.ID, c.SlotIndex, code, now); err != nil {
				return err
			}
			result.Changed++
		}
		return nil
	})
	if err != nil {
		return domain.RelabelResult{}, err
	}

	if result.Changed > 0 {
		s.recordTopology(ctx, AuditActionUnitRelabel, "fridge_unit", unitID.String(), map[string]any{
			"changed": result.Changed,
		})
	}
	return result, nil
}

func (s *Service) CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (domain.Room, error) {
	if req.Floor < 1 {
		return domain.Room{}, domain.ErrInvalidFloor
	}
	number := strings.TrimSpace(req.RoomNumber)
	if number == "" {
		return domain.Room{}, domain.ErrInvalidRoomNumber
	}

	room := domain.Room{
		ID:         s.genID.Generate(),
		Floor:      req.Floor,
		RoomNumber: number,
		RoomType:   strings.TrimSpace(req.RoomType),
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := s.repo.InsertRoom(ctx, s.db.WithContext(ctx), &room); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Room{}, fmt.Errorf("%w: %d/%s", domain.ErrRoomExists, room.Floor, room.RoomNumber)
		}
		return domain.Room{}, err
	}

	s.recordTopology(ctx, AuditActionRoomCreate, "room", room.ID.String(), map[string]any{
		"floor":       room.Floor,
		"room_number": room.RoomNumber,
	})
	return room, nil
}

func isPermutation(existing []domain.FridgeCompartment, order []snowflake.ID) bool {
	if len(existing) != len(order) {
		return false
	}
	want := make(map[snowflake.ID]bool, len(existing))
	for _, c := range existing {
		want[c.ID] = true
	}
	for _, id := range order {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return len(want) == 0
}

func (s *Service) recordTopology(ctx context.Context, action, resourceType, resourceKey string, detail map[string]any) {
	cid := correlation.ExtractCorrelationID(ctx)
	if err := s.audit.Record(ctx, action, resourceType, resourceKey, nil, optionalString(cid), detail); err != nil {
		s.log.Warn("failed to record topology audit",
			zap.String("action", action),
			zap.String("resource_key", resourceKey),
			zap.Error(err),
		)
	}
}
