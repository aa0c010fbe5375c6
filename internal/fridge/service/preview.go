package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Preview recommends a balanced room-to-compartment allocation for a floor.
// It performs no writes.
func (s *Service) Preview(ctx context.Context, floor int) (domain.PreviewResult, error) {
	if floor < 1 {
		return domain.PreviewResult{}, domain.ErrInvalidFloor
	}

	ctx, span := s.tracer.Start(ctx, "fridge.preview")
	defer span.End()
	span.SetAttributes(attribute.Int("dormitory.floor", floor))

	snap, err := s.loadSnapshot(ctx, floor)
	if err != nil {
		span.SetStatus(codes.Error, "load snapshot")
		return domain.PreviewResult{}, err
	}

	result, err := plan(snap, s.policy.Get())
	if err != nil {
		return domain.PreviewResult{}, err
	}

	warnings := map[string]int{}
	for _, c := range result.Compartments {
		for _, w := range c.Warnings {
			warnings[w]++
		}
	}
	s.metrics.RecordPreview(ctx, floor, warnings)
	span.SetAttributes(
		attribute.Int("dormitory.compartments", len(result.Compartments)),
		attribute.Int("dormitory.rooms", len(result.Rooms)),
	)
	return result, nil
}

func (s *Service) loadSnapshot(ctx context.Context, floor int) (floorSnapshot, error) {
	db := s.db.WithContext(ctx)

	rooms, err := s.repo.ListRooms(ctx, db, floor)
	if err != nil {
		return floorSnapshot{}, err
	}
	units, err := s.repo.ListUnits(ctx, db, floor)
	if err != nil {
		return floorSnapshot{}, err
	}

	unitIDs := make([]snowflake.ID, 0, len(units))
	for _, u := range units {
		unitIDs = append(unitIDs, u.ID)
	}
	compartments, err := s.repo.ListCompartmentsByUnits(ctx, db, unitIDs)
	if err != nil {
		return floorSnapshot{}, err
	}

	byUnit := make(map[snowflake.ID][]domain.FridgeCompartment, len(units))
	compartmentIDs := make([]snowflake.ID, 0, len(compartments))
	for _, c := range compartments {
		byUnit[c.UnitID] = append(byUnit[c.UnitID], c)
		compartmentIDs = append(compartmentIDs, c.ID)
	}

	active, err := s.repo.ActiveAssignmentsByCompartments(ctx, db, compartmentIDs)
	if err != nil {
		return floorSnapshot{}, err
	}
	byCompartment := make(map[snowflake.ID][]domain.RoomCompartmentAssignment, len(compartments))
	for _, a := range active {
		byCompartment[a.CompartmentID] = append(byCompartment[a.CompartmentID], a)
	}

	return floorSnapshot{
		floor:        floor,
		rooms:        rooms,
		units:        units,
		compartments: byUnit,
		assignments:  byCompartment,
	}, nil
}
