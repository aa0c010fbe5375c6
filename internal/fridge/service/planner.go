package service

import (
	"sort"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dormitory/internal/config"
	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/smallbiznis/dormitory/internal/fridge/label"
)

// floorSnapshot is everything the planner reads for one floor.
type floorSnapshot struct {
	floor        int
	rooms        []domain.Room
	units        []domain.FridgeUnit
	compartments map[snowflake.ID][]domain.FridgeCompartment // by unit, ordered by slot
	assignments  map[snowflake.ID][]domain.RoomCompartmentAssignment
}

// roomTenure is a room's earliest active assignment among the floor's
// candidate compartments.
type roomTenure struct {
	compartment snowflake.ID
	assignedAt  time.Time
	assignment  snowflake.ID
}

type floorPlan struct {
	recommended map[snowflake.ID][]snowflake.ID
	warnings    map[snowflake.ID][]string
}

// plan computes the recommendation for a floor. It never touches the store.
// Balancing runs over every candidate compartment on the floor, so each room
// is recommended into at most one compartment and the whole preview can be
// applied as a single request.
func plan(snap floorSnapshot, policy config.FridgePolicy) (domain.PreviewResult, error) {
	rooms := append([]domain.Room(nil), snap.rooms...)
	sort.SliceStable(rooms, func(i, j int) bool { return roomLess(rooms[i], rooms[j]) })
	rank := make(map[snowflake.ID]int, len(rooms))
	views := make([]domain.RoomView, 0, len(rooms))
	for i, room := range rooms {
		rank[room.ID] = i
		views = append(views, domain.RoomView{ID: room.ID, RoomNumber: room.RoomNumber, RoomType: room.RoomType})
	}

	result := domain.PreviewResult{
		Floor:        snap.floor,
		Rooms:        views,
		Compartments: []domain.CompartmentPreview{},
	}

	units := append([]domain.FridgeUnit(nil), snap.units...)
	sort.SliceStable(units, func(i, j int) bool { return units[i].ID < units[j].ID })

	var compartments []domain.FridgeCompartment
	for _, unit := range units {
		inUnit := append([]domain.FridgeCompartment(nil), snap.compartments[unit.ID]...)
		sort.SliceStable(inUnit, func(i, j int) bool { return inUnit[i].SlotIndex < inUnit[j].SlotIndex })
		compartments = append(compartments, inUnit...)
	}
	fp := planFloor(compartments, rooms, rank, snap.assignments, policy)

	for _, c := range compartments {
		slotLabel, err := label.SlotLetter(c.SlotIndex)
		if err != nil {
			return domain.PreviewResult{}, err
		}
		if c.Rebalanceable() && c.CompartmentType == domain.CompartmentTypeChill {
			result.ChillCompartmentCount++
		}
		result.Compartments = append(result.Compartments, domain.CompartmentPreview{
			ID:                 c.ID,
			UnitID:             c.UnitID,
			SlotIndex:          c.SlotIndex,
			SlotLabel:          slotLabel,
			CompartmentType:    c.CompartmentType,
			Status:             c.Status,
			Locked:             c.Locked,
			LabelRange:         label.RangeText(c.LabelRangeStart, c.LabelRangeEnd),
			CurrentRoomIDs:     sortByRank(currentRooms(snap.assignments[c.ID]), rank),
			RecommendedRoomIDs: sortByRank(fp.recommended[c.ID], rank),
			Warnings:           append([]string{}, fp.warnings[c.ID]...),
		})
	}
	return result, nil
}

// planFloor expects compartments in preview order: unit id, then slot.
func planFloor(
	compartments []domain.FridgeCompartment,
	rooms []domain.Room,
	rank map[snowflake.ID]int,
	assignments map[snowflake.ID][]domain.RoomCompartmentAssignment,
	policy config.FridgePolicy,
) floorPlan {
	fp := floorPlan{
		recommended: make(map[snowflake.ID][]snowflake.ID, len(compartments)),
		warnings:    make(map[snowflake.ID][]string, len(compartments)),
	}

	var candidates []domain.FridgeCompartment
	pinned := map[snowflake.ID]bool{}
	tenure := map[snowflake.ID]roomTenure{}
	for _, c := range compartments {
		current := currentRooms(assignments[c.ID])
		if !c.Rebalanceable() {
			fp.recommended[c.ID] = current
			if len(current) > 0 {
				fp.warnings[c.ID] = append(fp.warnings[c.ID], domain.WarningUnavailableForRebalancing)
			}
			if capacity := policy.CapacityFor(c.CompartmentType); capacity > 0 && len(current) > capacity {
				fp.warnings[c.ID] = append(fp.warnings[c.ID], domain.WarningCapacityExceeded)
			}
			for _, roomID := range current {
				pinned[roomID] = true
			}
			continue
		}
		candidates = append(candidates, c)
		for _, a := range assignments[c.ID] {
			if !a.Active() {
				continue
			}
			t, seen := tenure[a.RoomID]
			if !seen || a.AssignedAt.Before(t.assignedAt) || (a.AssignedAt.Equal(t.assignedAt) && a.ID < t.assignment) {
				tenure[a.RoomID] = roomTenure{compartment: c.ID, assignedAt: a.AssignedAt, assignment: a.ID}
			}
		}
	}
	if len(candidates) == 0 {
		return fp
	}

	// Rooms held by an unavailable compartment already have their place.
	var pool []snowflake.ID
	for _, room := range rooms {
		if !pinned[room.ID] {
			pool = append(pool, room.ID)
		}
	}

	keepers := make(map[snowflake.ID][]snowflake.ID, len(candidates))
	var homeless []snowflake.ID
	for _, roomID := range pool {
		if t, ok := tenure[roomID]; ok {
			keepers[t.compartment] = append(keepers[t.compartment], roomID)
			continue
		}
		homeless = append(homeless, roomID)
	}

	bySeniority := func(ids []snowflake.ID) {
		sort.SliceStable(ids, func(i, j int) bool {
			return senior(ids[i], ids[j], tenure, rank)
		})
	}

	targets := balanceTargets(candidates, len(pool), keepers)

	var movers []snowflake.ID
	for _, c := range candidates {
		kept := keepers[c.ID]
		bySeniority(kept)
		if len(kept) > targets[c.ID] {
			movers = append(movers, kept[targets[c.ID]:]...)
			kept = kept[:targets[c.ID]]
		}
		fp.recommended[c.ID] = append([]snowflake.ID{}, kept...)
	}

	unplaced := append(movers, homeless...)
	sort.SliceStable(unplaced, func(i, j int) bool { return rank[unplaced[i]] < rank[unplaced[j]] })
	for _, roomID := range unplaced {
		id, ok := leastLoaded(candidates, fp.recommended, func(c domain.FridgeCompartment) bool {
			return len(fp.recommended[c.ID]) >= targets[c.ID]
		})
		if !ok {
			break
		}
		fp.recommended[id] = append(fp.recommended[id], roomID)
	}

	var overflow []snowflake.ID
	for _, c := range candidates {
		capacity := policy.CapacityFor(c.CompartmentType)
		if capacity <= 0 || len(fp.recommended[c.ID]) <= capacity {
			continue
		}
		kept := fp.recommended[c.ID]
		bySeniority(kept)
		overflow = append(overflow, kept[capacity:]...)
		fp.recommended[c.ID] = kept[:capacity]
		fp.warnings[c.ID] = append(fp.warnings[c.ID], domain.WarningCapacityExceeded)
	}

	// Rooms cut by capacity move to any candidate that still has space; only
	// rooms that fit nowhere are left without a recommendation.
	bySeniority(overflow)
	for _, roomID := range overflow {
		id, ok := leastLoaded(candidates, fp.recommended, func(c domain.FridgeCompartment) bool {
			capacity := policy.CapacityFor(c.CompartmentType)
			return capacity > 0 && len(fp.recommended[c.ID]) >= capacity
		})
		if !ok {
			break
		}
		fp.recommended[id] = append(fp.recommended[id], roomID)
	}
	return fp
}

// leastLoaded picks the candidate with the fewest recommended rooms among those
// that are not full. Ties go to the earlier candidate.
func leastLoaded(
	candidates []domain.FridgeCompartment,
	recommended map[snowflake.ID][]snowflake.ID,
	full func(domain.FridgeCompartment) bool,
) (snowflake.ID, bool) {
	best := -1
	for i, c := range candidates {
		if full(c) {
			continue
		}
		if best < 0 || len(recommended[c.ID]) < len(recommended[candidates[best].ID]) {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return candidates[best].ID, true
}

// balanceTargets splits n rooms over the candidates as evenly as possible. The
// remainder goes to the compartments already holding the most rooms so fewer
// rooms have to move; ties keep candidate order.
func balanceTargets(candidates []domain.FridgeCompartment, n int, keepers map[snowflake.ID][]snowflake.ID) map[snowflake.ID]int {
	k := len(candidates)
	base, extra := n/k, n%k

	order := make([]domain.FridgeCompartment, k)
	copy(order, candidates)
	sort.SliceStable(order, func(i, j int) bool {
		return len(keepers[order[i].ID]) > len(keepers[order[j].ID])
	})

	targets := make(map[snowflake.ID]int, k)
	for i, c := range order {
		targets[c.ID] = base
		if i < extra {
			targets[c.ID]++
		}
	}
	return targets
}

// senior orders rooms by earliest candidate assignment, then rooms with no
// assignment, each group by room order.
func senior(a, b snowflake.ID, tenure map[snowflake.ID]roomTenure, rank map[snowflake.ID]int) bool {
	ta, okA := tenure[a]
	tb, okB := tenure[b]
	switch {
	case okA && okB:
		if !ta.assignedAt.Equal(tb.assignedAt) {
			return ta.assignedAt.Before(tb.assignedAt)
		}
		if ta.assignment != tb.assignment {
			return ta.assignment < tb.assignment
		}
	case okA != okB:
		return okA
	}
	return rank[a] < rank[b]
}

func currentRooms(assignments []domain.RoomCompartmentAssignment) []snowflake.ID {
	seen := make(map[snowflake.ID]bool, len(assignments))
	ids := make([]snowflake.ID, 0, len(assignments))
	for _, a := range assignments {
		if !a.Active() || seen[a.RoomID] {
			continue
		}
		seen[a.RoomID] = true
		ids = append(ids, a.RoomID)
	}
	return ids
}

// sortByRank orders room ids like the floor's room list; rooms from other
// floors sort last by id.
func sortByRank(ids []snowflake.ID, rank map[snowflake.ID]int) []snowflake.ID {
	out := append([]snowflake.ID{}, ids...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, okI := rank[out[i]]
		rj, okJ := rank[out[j]]
		switch {
		case okI && okJ:
			return ri < rj
		case okI != okJ:
			return okI
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// roomLess compares room numbers numerically when both are numbers.
func roomLess(a, b domain.Room) bool {
	na, errA := strconv.Atoi(a.RoomNumber)
	nb, errB := strconv.Atoi(b.RoomNumber)
	if errA == nil && errB == nil && na != nb {
		return na < nb
	}
	if a.RoomNumber != b.RoomNumber {
		return a.RoomNumber < b.RoomNumber
	}
	return a.ID < b.ID
}
