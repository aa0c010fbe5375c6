package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/smallbiznis/dormitory/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	applyOutcomeApplied  = "applied"
	applyOutcomeRejected = "rejected"
	applyOutcomeBusy     = "busy"
	applyOutcomeFailed   = "failed"
)

// target is one normalized allocation: the requested room set of a compartment.
type target struct {
	compartmentID snowflake.ID
	rooms         []snowflake.ID
	roomSet       map[snowflake.ID]bool
	force         bool
}

type applyDelta struct {
	affected int
	released int
	created  int
	touched  []snowflake.ID
	forced   []snowflake.ID
}

// Apply replaces the active assignments of every compartment in the request
// with the requested room sets, all or nothing.
func (s *Service) Apply(ctx context.Context, req domain.ApplyRequest) (domain.ApplyResult, error) {
	start := s.clock.Now()
	targets, err := normalizeApply(req)
	if err != nil {
		s.metrics.RecordApply(ctx, req.Floor, applyOutcomeRejected, 0)
		return domain.ApplyResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "fridge.apply")
	defer span.End()
	span.SetAttributes(
		attribute.Int("dormitory.floor", req.Floor),
		attribute.Int("dormitory.allocations", len(targets)),
	)

	key := "fridge:floor:" + strconv.Itoa(req.Floor)
	token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
	if err != nil {
		s.metrics.RecordApply(ctx, req.Floor, applyOutcomeFailed, 0)
		span.SetStatus(codes.Error, "floor lock")
		return domain.ApplyResult{}, fmt.Errorf("%w: acquire floor lock: %w", domain.ErrApplyFailed, err)
	}
	if !ok {
		s.metrics.RecordApply(ctx, req.Floor, applyOutcomeBusy, 0)
		return domain.ApplyResult{}, domain.ErrFloorBusy
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("failed to release floor lock", zap.Int("floor", req.Floor), zap.Error(err))
		}
	}()

	appliedAt := s.clock.Now().UTC()
	var delta applyDelta
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		delta, txErr = s.commit(ctx, tx, req.Floor, targets, appliedAt)
		return txErr
	})
	if err != nil {
		err = storeError(err)
		outcome := applyOutcomeRejected
		switch {
		case errors.Is(err, domain.ErrFloorBusy):
			outcome = applyOutcomeBusy
		case errors.Is(err, domain.ErrApplyFailed):
			outcome = applyOutcomeFailed
			span.SetStatus(codes.Error, "commit")
		}
		s.metrics.RecordApply(ctx, req.Floor, outcome, s.clock.Now().Sub(start))
		return domain.ApplyResult{}, err
	}

	result := domain.ApplyResult{
		Floor:                req.Floor,
		AffectedCompartments: delta.affected,
		ReleasedAssignments:  delta.released,
		CreatedAssignments:   delta.created,
		AppliedAt:            appliedAt,
	}
	s.metrics.RecordApply(ctx, req.Floor, applyOutcomeApplied, s.clock.Now().Sub(start))
	s.metrics.RecordAssignmentChanges(ctx, req.Floor, delta.created, delta.released)
	span.SetAttributes(
		attribute.Int("dormitory.affected_compartments", delta.affected),
		attribute.Int("dormitory.released_assignments", delta.released),
		attribute.Int("dormitory.created_assignments", delta.created),
	)

	s.recordApply(ctx, result, delta)
	return result, nil
}

// normalizeApply performs the checks that need no store access and dedupes
// room ids within each allocation.
func normalizeApply(req domain.ApplyRequest) ([]target, error) {
	if req.Floor < 1 {
		return nil, domain.ErrInvalidFloor
	}
	if len(req.Allocations) == 0 {
		return nil, domain.ErrEmptyAllocations
	}

	seenCompartments := make(map[snowflake.ID]bool, len(req.Allocations))
	roomOwner := map[snowflake.ID]snowflake.ID{}
	targets := make([]target, 0, len(req.Allocations))
	for _, alloc := range req.Allocations {
		if alloc.CompartmentID == 0 {
			return nil, fmt.Errorf("%w: compartment id is required", domain.ErrInvalidID)
		}
		if seenCompartments[alloc.CompartmentID] {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateCompartment, alloc.CompartmentID)
		}
		seenCompartments[alloc.CompartmentID] = true

		t := target{
			compartmentID: alloc.CompartmentID,
			roomSet:       make(map[snowflake.ID]bool, len(alloc.RoomIDs)),
			force:         alloc.Force,
		}
		for _, roomID := range alloc.RoomIDs {
			if roomID == 0 {
				return nil, fmt.Errorf("%w: room id is required", domain.ErrInvalidID)
			}
			if t.roomSet[roomID] {
				continue
			}
			if owner, taken := roomOwner[roomID]; taken {
				return nil, fmt.Errorf("%w: room %s under compartments %s and %s",
					domain.ErrRoomInMultipleTargets, roomID, owner, alloc.CompartmentID)
			}
			roomOwner[roomID] = alloc.CompartmentID
			t.roomSet[roomID] = true
			t.rooms = append(t.rooms, roomID)
		}
		targets = append(targets, t)
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].compartmentID < targets[j].compartmentID })
	return targets, nil
}

// commit runs inside the apply transaction: it re-reads the compartments under
// row locks, validates against live state, then writes the diff.
func (s *Service) commit(ctx context.Context, tx *gorm.DB, floor int, targets []target, at time.Time) (applyDelta, error) {
	compartmentIDs := make([]snowflake.ID, 0, len(targets))
	var roomIDs []snowflake.ID
	for _, t := range targets {
		compartmentIDs = append(compartmentIDs, t.compartmentID)
		roomIDs = append(roomIDs, t.rooms...)
	}

	locked, err := s.repo.LockCompartments(ctx, tx, compartmentIDs)
	if err != nil {
		return applyDelta{}, storeError(err)
	}
	byID := make(map[snowflake.ID]domain.LockedCompartment, len(locked))
	for _, c := range locked {
		byID[c.ID] = c
	}

	current, err := s.repo.ActiveAssignmentsByCompartments(ctx, tx, compartmentIDs)
	if err != nil {
		return applyDelta{}, storeError(err)
	}
	occupants := make(map[snowflake.ID]map[snowflake.ID]bool, len(targets))
	for _, a := range current {
		if occupants[a.CompartmentID] == nil {
			occupants[a.CompartmentID] = map[snowflake.ID]bool{}
		}
		occupants[a.CompartmentID][a.RoomID] = true
	}

	var delta applyDelta
	for _, t := range targets {
		c, ok := byID[t.compartmentID]
		if !ok {
			return applyDelta{}, fmt.Errorf("%w: %s", domain.ErrUnknownCompartment, t.compartmentID)
		}
		if c.Floor != floor {
			return applyDelta{}, fmt.Errorf("%w: %s is on floor %d", domain.ErrCompartmentNotOnFloor, c.ID, c.Floor)
		}
		if c.Locked && !t.force {
			return applyDelta{}, fmt.Errorf("%w: %s", domain.ErrCompartmentLocked, c.ID)
		}
		if c.Status != domain.CompartmentStatusActive && !t.force && gainsRooms(t, occupants[c.ID]) {
			return applyDelta{}, fmt.Errorf("%w: %s is %s", domain.ErrCompartmentUnavailable, c.ID, c.Status)
		}
		if t.force && (c.Locked || c.Status != domain.CompartmentStatusActive) {
			delta.forced = append(delta.forced, c.ID)
		}
	}

	if err := s.validateRooms(ctx, tx, floor, targets, byID, roomIDs); err != nil {
		return applyDelta{}, err
	}

	for _, t := range targets {
		before := occupants[t.compartmentID]
		changed := false

		var released []snowflake.ID
		for roomID := range before {
			if !t.roomSet[roomID] {
				released = append(released, roomID)
			}
		}
		sort.Slice(released, func(i, j int) bool { return released[i] < released[j] })
		for _, roomID := range released {
			if err := s.repo.RevokeAssignment(ctx, tx, roomID, t.compartmentID, at); err != nil {
				return applyDelta{}, storeError(err)
			}
			delta.released++
			changed = true
		}

		for _, roomID := range t.rooms {
			if before[roomID] {
				continue
			}
			assignment := &domain.RoomCompartmentAssignment{
				ID:            s.genID.Generate(),
				RoomID:        roomID,
				CompartmentID: t.compartmentID,
				AssignedAt:    at,
				CreatedAt:     at,
			}
			if err := s.repo.CreateAssignment(ctx, tx, assignment); err != nil {
				return applyDelta{}, storeError(err)
			}
			delta.created++
			changed = true
		}

		delta.touched = append(delta.touched, t.compartmentID)
		if changed {
			delta.affected++
		}
	}
	return delta, nil
}

// validateRooms checks every requested room is on the floor and would not end
// up with two active compartments in one unit.
func (s *Service) validateRooms(
	ctx context.Context,
	tx *gorm.DB,
	floor int,
	targets []target,
	compartments map[snowflake.ID]domain.LockedCompartment,
	roomIDs []snowflake.ID,
) error {
	if len(roomIDs) == 0 {
		return nil
	}

	rooms, err := s.repo.ListRoomsByIDs(ctx, tx, roomIDs)
	if err != nil {
		return storeError(err)
	}
	roomFloor := make(map[snowflake.ID]int, len(rooms))
	for _, r := range rooms {
		roomFloor[r.ID] = r.Floor
	}
	for _, roomID := range roomIDs {
		f, ok := roomFloor[roomID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownRoom, roomID)
		}
		if f != floor {
			return fmt.Errorf("%w: %s is on floor %d", domain.ErrRoomNotOnFloor, roomID, f)
		}
	}

	held, err := s.repo.ActiveAssignmentsByRooms(ctx, tx, roomIDs)
	if err != nil {
		return storeError(err)
	}
	seen := map[snowflake.ID]bool{}
	var outside []snowflake.ID
	for _, a := range held {
		if _, requested := compartments[a.CompartmentID]; requested || seen[a.CompartmentID] {
			continue
		}
		seen[a.CompartmentID] = true
		outside = append(outside, a.CompartmentID)
	}
	if len(outside) == 0 {
		return nil
	}

	others, err := s.repo.ListCompartmentsByIDs(ctx, tx, outside)
	if err != nil {
		return storeError(err)
	}
	unitOf := make(map[snowflake.ID]snowflake.ID, len(others))
	for _, c := range others {
		unitOf[c.ID] = c.UnitID
	}

	requestedUnit := make(map[snowflake.ID]snowflake.ID, len(roomIDs))
	for _, t := range targets {
		for _, roomID := range t.rooms {
			requestedUnit[roomID] = compartments[t.compartmentID].UnitID
		}
	}
	for _, a := range held {
		if _, requested := compartments[a.CompartmentID]; requested {
			continue
		}
		if unit, ok := unitOf[a.CompartmentID]; ok && unit == requestedUnit[a.RoomID] {
			return fmt.Errorf("%w: room %s already holds compartment %s in unit %s",
				domain.ErrRoomAssignedInUnit, a.RoomID, a.CompartmentID, unit)
		}
	}
	return nil
}

func gainsRooms(t target, before map[snowflake.ID]bool) bool {
	for _, roomID := range t.rooms {
		if !before[roomID] {
			return true
		}
	}
	return false
}

func (s *Service) recordApply(ctx context.Context, result domain.ApplyResult, delta applyDelta) {
	touched := make([]string, 0, len(delta.touched))
	for _, id := range delta.touched {
		touched = append(touched, id.String())
	}
	detail := map[string]any{
		"floor":                 result.Floor,
		"affected_compartments": result.AffectedCompartments,
		"released_assignments":  result.ReleasedAssignments,
		"created_assignments":   result.CreatedAssignments,
		"compartment_ids":       touched,
	}
	if len(delta.forced) > 0 {
		forced := make([]string, 0, len(delta.forced))
		for _, id := range delta.forced {
			forced = append(forced, id.String())
		}
		detail["forced_compartment_ids"] = forced
	}

	cid := correlation.ExtractCorrelationID(ctx)
	err := s.audit.Record(ctx, domain.AuditActionReallocationApply, "floor", strconv.Itoa(result.Floor), nil, optionalString(cid), detail)
	if err != nil {
		s.log.Warn("failed to record reallocation audit",
			zap.Int("floor", result.Floor),
			zap.String("correlation_id", cid),
			zap.Error(err),
		)
	}
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
