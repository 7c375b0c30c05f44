// Package threshold decides how much accumulated damage breaks a block.
package threshold

import "math"

const (
	// AnchorThreshold is used for the nexus regardless of its material hardness.
	AnchorThreshold = 500
	// Unbreakable is returned for materials with negative hardness.
	Unbreakable = math.MaxInt32
)

// Difficulty mirrors the host's difficulty setting.
type Difficulty string

const (
	Peaceful Difficulty = "peaceful"
	Easy     Difficulty = "easy"
	Normal   Difficulty = "normal"
	Hard     Difficulty = "hard"
)

// Multipliers maps difficulty to the curve factor. Lower difficulty makes blocks tougher.
type Multipliers struct {
	Easy   float64
	Normal float64
	Hard   float64
}

func DefaultMultipliers() Multipliers {
	return Multipliers{Easy: 2.0, Normal: 1.5, Hard: 1.0}
}

func (m Multipliers) For(d Difficulty) float64 {
	switch d {
	case Easy, Peaceful:
		return m.Easy
	case Hard:
		return m.Hard
	default:
		return m.Normal
	}
}

// ForHardness evaluates the break curve:
//
//	round(mult * (3*(h + 80*log10(h+1)) - 60*exp(-((h-2.5)^2)/6) + 50))
//
// The result is at least 1.
func ForHardness(hardness, mult float64) int {
	if hardness < 0 {
		return Unbreakable
	}
	h := hardness
	v := mult * (3*(h+80*math.Log10(h+1)) - 60*math.Exp(-((h-2.5)*(h-2.5))/6) + 50)
	r := math.Round(v)
	if r < 1 {
		return 1
	}
	if r > Unbreakable {
		return Unbreakable
	}
	return int(r)
}

// Threshold returns the anchor constant for the nexus and the curve value otherwise.
func Threshold(isAnchor bool, hardness, mult float64) int {
	if isAnchor {
		return AnchorThreshold
	}
	return ForHardness(hardness, mult)
}
