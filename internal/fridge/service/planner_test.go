package service

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dormitory/internal/config"
	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshotBuilder struct {
	snap floorSnapshot
	seq  snowflake.ID
}

func newSnapshot(floor int) *snapshotBuilder {
	return &snapshotBuilder{
		snap: floorSnapshot{
			floor:        floor,
			compartments: map[snowflake.ID][]domain.FridgeCompartment{},
			assignments:  map[snowflake.ID][]domain.RoomCompartmentAssignment{},
		},
		seq: 9000,
	}
}

func (b *snapshotBuilder) rooms(numbers ...string) *snapshotBuilder {
	base := 100 + len(b.snap.rooms)
	for i, n := range numbers {
		b.snap.rooms = append(b.snap.rooms, domain.Room{ID: snowflake.ID(base + i), Floor: b.snap.floor, RoomNumber: n})
	}
	return b
}

func (b *snapshotBuilder) unit(id snowflake.ID, compartments ...domain.FridgeCompartment) *snapshotBuilder {
	b.snap.units = append(b.snap.units, domain.FridgeUnit{ID: id, Floor: b.snap.floor})
	for i := range compartments {
		compartments[i].UnitID = id
	}
	b.snap.compartments[id] = append(b.snap.compartments[id], compartments...)
	return b
}

func (b *snapshotBuilder) assign(compartmentID, roomID snowflake.ID, at time.Time) *snapshotBuilder {
	b.seq++
	b.snap.assignments[compartmentID] = append(b.snap.assignments[compartmentID], domain.RoomCompartmentAssignment{
		ID: b.seq, RoomID: roomID, CompartmentID: compartmentID, AssignedAt: at,
	})
	return b
}

func chill(id snowflake.ID, slot int) domain.FridgeCompartment {
	return domain.FridgeCompartment{
		ID:              id,
		SlotIndex:       slot,
		CompartmentType: domain.CompartmentTypeChill,
		Status:          domain.CompartmentStatusActive,
		LabelRangeStart: 1,
		LabelRangeEnd:   50,
	}
}

func recommended(t *testing.T, result domain.PreviewResult) map[snowflake.ID][]snowflake.ID {
	t.Helper()
	out := map[snowflake.ID][]snowflake.ID{}
	for _, c := range result.Compartments {
		out[c.ID] = c.RecommendedRoomIDs
	}
	return out
}

func previewOf(t *testing.T, result domain.PreviewResult, id snowflake.ID) domain.CompartmentPreview {
	t.Helper()
	for _, c := range result.Compartments {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("compartment %s not in preview", id)
	return domain.CompartmentPreview{}
}

func TestPlanBalancesEmptyFloor(t *testing.T) {
	snap := newSnapshot(3).
		rooms("301", "302", "303", "304", "305").
		unit(1, chill(11, 0), chill(12, 1)).
		snap

	result, err := plan(snap, config.FridgePolicy{})
	require.NoError(t, err)

	rec := recommended(t, result)
	assert.Equal(t, ids(100, 102, 104), rec[11])
	assert.Equal(t, ids(101, 103), rec[12])
	assert.Equal(t, 2, result.ChillCompartmentCount)
	assert.Equal(t, 3, result.Floor)
	require.Len(t, result.Rooms, 5)
	assert.Equal(t, "301", result.Rooms[0].RoomNumber)

	first := previewOf(t, result, 11)
	assert.Equal(t, "A", first.SlotLabel)
	assert.Equal(t, "001-050", first.LabelRange)
	assert.NotNil(t, first.Warnings)
	assert.Empty(t, first.Warnings)
	assert.Empty(t, first.CurrentRoomIDs)
}

func TestPlanKeepsSeniorRoomsInPlace(t *testing.T) {
	snap := newSnapshot(2).
		rooms("201", "202", "203", "204").
		unit(1, chill(11, 0), chill(12, 1)).
		assign(11, 103, baseTime).
		assign(11, 102, baseTime.Add(time.Hour)).
		assign(11, 101, baseTime.Add(2*time.Hour)).
		assign(11, 100, baseTime.Add(3*time.Hour)).
		snap

	result, err := plan(snap, config.FridgePolicy{})
	require.NoError(t, err)

	rec := recommended(t, result)
	assert.Equal(t, ids(102, 103), rec[11])
	assert.Equal(t, ids(100, 101), rec[12])
	assert.Equal(t, ids(100, 101, 102, 103), previewOf(t, result, 11).CurrentRoomIDs)
}

func TestPlanRemainderGoesToFullerCompartment(t *testing.T) {
	snap := newSnapshot(1).
		rooms("101", "102", "103").
		unit(1, chill(11, 0), chill(12, 1)).
		assign(12, 100, baseTime).
		assign(12, 101, baseTime).
		snap

	result, err := plan(snap, config.FridgePolicy{})
	require.NoError(t, err)

	rec := recommended(t, result)
	assert.Equal(t, ids(100, 101), rec[12])
	assert.Equal(t, ids(102), rec[11])
}

func TestPlanLeavesUnavailableCompartmentsAlone(t *testing.T) {
	suspended := chill(13, 2)
	suspended.Status = domain.CompartmentStatusSuspended
	pinned := chill(12, 1)
	pinned.Locked = true

	snap := newSnapshot(4).
		rooms("401", "402", "403", "404").
		unit(1, chill(11, 0), pinned, suspended).
		assign(12, 103, baseTime).
		snap

	result, err := plan(snap, config.FridgePolicy{})
	require.NoError(t, err)

	rec := recommended(t, result)
	assert.Equal(t, ids(103), rec[12])
	assert.Equal(t, []string{domain.WarningUnavailableForRebalancing}, previewOf(t, result, 12).Warnings)
	assert.Empty(t, rec[13])
	assert.Empty(t, previewOf(t, result, 13).Warnings)
	assert.Equal(t, ids(100, 101, 102), rec[11])
	assert.Equal(t, 1, result.ChillCompartmentCount)
}

func TestPlanTruncatesToCapacityBySeniority(t *testing.T) {
	snap := newSnapshot(5).
		rooms("501", "502", "503").
		unit(1, chill(11, 0)).
		assign(11, 102, baseTime).
		snap

	result, err := plan(snap, config.FridgePolicy{CompartmentCapacity: 2})
	require.NoError(t, err)

	c := previewOf(t, result, 11)
	assert.Equal(t, ids(100, 102), c.RecommendedRoomIDs)
	assert.Equal(t, []string{domain.WarningCapacityExceeded}, c.Warnings)
}

func TestPlanWarnsWhenLockedCompartmentOverCapacity(t *testing.T) {
	frozen := chill(11, 0)
	frozen.CompartmentType = domain.CompartmentTypeFreeze
	frozen.Locked = true

	snap := newSnapshot(5).
		rooms("501", "502").
		unit(1, frozen).
		assign(11, 100, baseTime).
		assign(11, 101, baseTime).
		snap

	result, err := plan(snap, config.FridgePolicy{CompartmentCapacity: 5, FreezeCapacity: 1})
	require.NoError(t, err)

	c := previewOf(t, result, 11)
	assert.Equal(t, ids(100, 101), c.RecommendedRoomIDs)
	assert.Equal(t, []string{domain.WarningUnavailableForRebalancing, domain.WarningCapacityExceeded}, c.Warnings)
	assert.Zero(t, result.ChillCompartmentCount)
}

func TestPlanGivesEveryRoomOneCompartmentOnTheFloor(t *testing.T) {
	snap := newSnapshot(6).
		rooms("601", "602", "603", "604").
		unit(1, chill(11, 0), chill(12, 1)).
		unit(2, chill(21, 0)).
		assign(11, 100, baseTime).
		assign(21, 100, baseTime.Add(time.Hour)).
		assign(21, 101, baseTime).
		snap

	result, err := plan(snap, config.FridgePolicy{})
	require.NoError(t, err)

	seen := map[snowflake.ID]int{}
	for _, c := range result.Compartments {
		for _, roomID := range c.RecommendedRoomIDs {
			seen[roomID]++
		}
	}
	assert.Len(t, seen, 4)
	for roomID, n := range seen {
		assert.Equal(t, 1, n, "room %s", roomID)
	}

	rec := recommended(t, result)
	assert.Contains(t, rec[11], snowflake.ID(100))
	assert.Contains(t, rec[21], snowflake.ID(101))
	assert.NotContains(t, rec[21], snowflake.ID(100))
}

func TestPlanDoesNotPlaceRoomsHeldByUnavailableCompartment(t *testing.T) {
	pinned := chill(11, 0)
	pinned.Locked = true

	snap := newSnapshot(6).
		rooms("601", "602", "603").
		unit(1, pinned).
		unit(2, chill(21, 0), chill(22, 1)).
		assign(11, 100, baseTime).
		snap

	result, err := plan(snap, config.FridgePolicy{})
	require.NoError(t, err)

	rec := recommended(t, result)
	assert.Equal(t, ids(100), rec[11])
	assert.Equal(t, ids(101), rec[21])
	assert.Equal(t, ids(102), rec[22])
}

func TestPlanMovesRoomsCutByCapacityToSpareCompartment(t *testing.T) {
	frozen := chill(12, 1)
	frozen.CompartmentType = domain.CompartmentTypeFreeze

	snap := newSnapshot(3).
		rooms("301", "302", "303", "304").
		unit(1, chill(11, 0), frozen).
		snap

	result, err := plan(snap, config.FridgePolicy{ChillCapacity: 1, FreezeCapacity: 10})
	require.NoError(t, err)

	rec := recommended(t, result)
	assert.Equal(t, ids(100), rec[11])
	assert.Equal(t, ids(101, 102, 103), rec[12])
	assert.Equal(t, []string{domain.WarningCapacityExceeded}, previewOf(t, result, 11).Warnings)
	assert.Empty(t, previewOf(t, result, 12).Warnings)
}

func TestPlanDropsRoomsWhenEveryCompartmentIsFull(t *testing.T) {
	snap := newSnapshot(3).
		rooms("301", "302", "303", "304", "305").
		unit(1, chill(11, 0), chill(12, 1)).
		snap

	result, err := plan(snap, config.FridgePolicy{CompartmentCapacity: 2})
	require.NoError(t, err)

	rec := recommended(t, result)
	assert.Equal(t, ids(100, 102), rec[11])
	assert.Equal(t, ids(101, 103), rec[12])
	assert.Equal(t, []string{domain.WarningCapacityExceeded}, previewOf(t, result, 11).Warnings)
}

func TestPlanIsDeterministic(t *testing.T) {
	build := func() floorSnapshot {
		return newSnapshot(7).
			rooms("710", "702", "7A", "701").
			unit(2, chill(22, 1), chill(21, 0)).
			unit(1, chill(11, 0)).
			assign(21, 102, baseTime).
			assign(22, 102, baseTime).
			snap
	}

	first, err := plan(build(), config.FridgePolicy{})
	require.NoError(t, err)
	second, err := plan(build(), config.FridgePolicy{})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	numbers := make([]string, 0, len(first.Rooms))
	for _, r := range first.Rooms {
		numbers = append(numbers, r.RoomNumber)
	}
	assert.Equal(t, []string{"701", "702", "710", "7A"}, numbers)
	assert.Equal(t, snowflake.ID(11), first.Compartments[0].ID)
	assert.Equal(t, snowflake.ID(21), first.Compartments[1].ID)
}

func TestPlanWithoutUnits(t *testing.T) {
	result, err := plan(newSnapshot(8).rooms("801").snap, config.FridgePolicy{})
	require.NoError(t, err)
	assert.NotNil(t, result.Compartments)
	assert.Empty(t, result.Compartments)
	assert.Len(t, result.Rooms, 1)
}
