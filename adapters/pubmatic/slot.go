package pubmatic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/prebid/openbid/errortypes"
)

const defaultAdUnitIndex = "0"

// Slot is the decoded form of an adSlot param, "adUnit@WxH" with an optional ":index" suffix.
type Slot struct {
	Raw         string
	AdUnit      string
	AdUnitIndex string
	Width       int64
	Height      int64
}

// ParseSlot decodes an adSlot string. On a format error the returned Slot keeps only the trimmed
// raw value, with the index reset to "0" and no size.
//
// Non-numeric dimensions are not a format error: they parse to 0, which Acceptable rejects.
func ParseSlot(adSlot string) (Slot, error) {
	slot := Slot{
		Raw:         strings.TrimSpace(adSlot),
		AdUnitIndex: defaultAdUnitIndex,
	}

	splits := strings.Split(slot.Raw, ":")
	index := defaultAdUnitIndex
	if len(splits) == 2 {
		index = splits[1]
	}

	parts := strings.Split(splits[0], "@")
	if len(parts) != 2 {
		return slot, invalidSlotFormat(slot.Raw)
	}

	adSize := strings.Split(strings.ToLower(parts[1]), "x")
	if len(adSize) != 2 {
		return slot, invalidSlotFormat(slot.Raw)
	}

	slot.AdUnit = parts[0]
	slot.AdUnitIndex = index
	slot.Width = parseDimension(adSize[0])
	slot.Height = parseDimension(adSize[1])
	return slot, nil
}

// Acceptable reports whether every derived part of the slot is usable in an impression.
func (s Slot) Acceptable() bool {
	return s.Raw != "" && s.AdUnit != "" && s.AdUnitIndex != "" && s.Width != 0 && s.Height != 0
}

func parseDimension(value string) int64 {
	dimension, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return dimension
}

func invalidSlotFormat(adSlot string) error {
	return &errortypes.BadInput{
		Message: fmt.Sprintf("AdSlot Error: adSlot %q not in required format adUnit@WxH[:index]", adSlot),
	}
}
