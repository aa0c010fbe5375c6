// Package label derives the printed codes used on shared fridges: the letter
// code of a compartment slot and the fixed-width item label number.
package label

import (
	"fmt"
	"strconv"

	"github.com/smallbiznis/dormitory/internal/fridge/domain"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// SlotLetter returns the spreadsheet-style code of the 1-based position
// slotIndex+1: 0 -> "A", 25 -> "Z", 26 -> "AA", 52 -> "BA".
func SlotLetter(slotIndex int) (string, error) {
	if slotIndex < 0 {
		return "", fmt.Errorf("%w: %d", domain.ErrInvalidSlotIndex, slotIndex)
	}

	var buf [16]byte
	pos := len(buf)
	for n := slotIndex + 1; n > 0; n = (n - 1) / 26 {
		pos--
		buf[pos] = alphabet[(n-1)%26]
	}
	return string(buf[pos:]), nil
}

// LabelNumber zero-pads value to three digits. Values above 999 saturate at
// "999" because tags are printed with exactly three digits.
func LabelNumber(value int) string {
	if value > domain.LabelNumberMax {
		value = domain.LabelNumberMax
	}
	s := strconv.Itoa(value)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// ItemLabel is the full tag printed on an item: "<slot letter>-<number>".
func ItemLabel(slotIndex, number int) (string, error) {
	letter, err := SlotLetter(slotIndex)
	if err != nil {
		return "", err
	}
	return letter + "-" + LabelNumber(number), nil
}

// RangeText renders a label range as "001-050".
func RangeText(start, end int) string {
	return LabelNumber(start) + "-" + LabelNumber(end)
}

// ValidRange reports whether 1 <= start <= end <= 999.
func ValidRange(start, end int) bool {
	return start >= domain.LabelNumberMin && start <= end && end <= domain.LabelNumberMax
}
