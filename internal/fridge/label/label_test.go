package label

import (
	"errors"
	"testing"

	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotLetter(t *testing.T) {
	cases := map[int]string{
		0:   "A",
		1:   "B",
		25:  "Z",
		26:  "AA",
		27:  "AB",
		51:  "AZ",
		52:  "BA",
		701: "ZZ",
		702: "AAA",
	}
	for index, want := range cases {
		got, err := SlotLetter(index)
		require.NoError(t, err)
		assert.Equal(t, want, got, "slot index %d", index)
	}
}

func TestSlotLetterRejectsNegativeIndex(t *testing.T) {
	_, err := SlotLetter(-1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidSlotIndex))
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestSlotLetterOrdersByLengthThenAlphabet(t *testing.T) {
	prev, err := SlotLetter(0)
	require.NoError(t, err)
	for i := 1; i < 2000; i++ {
		cur, err := SlotLetter(i)
		require.NoError(t, err)
		if len(cur) == len(prev) {
			assert.Less(t, prev, cur, "index %d", i)
		} else {
			assert.Equal(t, len(prev)+1, len(cur), "index %d", i)
		}
		prev = cur
	}
}

func TestSlotLetterIsStable(t *testing.T) {
	first, _ := SlotLetter(123)
	second, _ := SlotLetter(123)
	assert.Equal(t, first, second)
}

func TestLabelNumber(t *testing.T) {
	assert.Equal(t, "000", LabelNumber(0))
	assert.Equal(t, "001", LabelNumber(1))
	assert.Equal(t, "042", LabelNumber(42))
	assert.Equal(t, "999", LabelNumber(999))
	assert.Equal(t, "999", LabelNumber(1000))
	assert.Equal(t, "999", LabelNumber(123456))
}

func TestItemLabel(t *testing.T) {
	got, err := ItemLabel(27, 7)
	require.NoError(t, err)
	assert.Equal(t, "AB-007", got)

	_, err = ItemLabel(-3, 7)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRange(t *testing.T) {
	assert.Equal(t, "001-050", RangeText(1, 50))
	assert.True(t, ValidRange(1, 999))
	assert.True(t, ValidRange(10, 10))
	assert.False(t, ValidRange(0, 10))
	assert.False(t, ValidRange(20, 10))
	assert.False(t, ValidRange(1, 1000))
}
