// SPDX-License-Identifier: MIT

package subtitle

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultMinCueDuration is applied when a shifted cue would end at or before its start.
const DefaultMinCueDuration = time.Second

// MaxTimestampMillis is 99:59:59,999, the largest value the two-digit hour
// field can hold. Shifted cues are clamped to it.
const MaxTimestampMillis int64 = 359_999_999

// MaxOffsetSeconds bounds the magnitude of an accepted offset. Anything
// larger moves every cue past one of the clamps.
const MaxOffsetSeconds = float64(MaxTimestampMillis) / 1000

// ErrInvalidOffset reports a non-finite or out of range offset.
var ErrInvalidOffset = errors.New("subtitle: offset must be a finite number of seconds within ±359999.999")

// Policy controls how Shift repairs cues that collapse after clamping.
type Policy struct {
	// MinCueDuration is the duration forced onto a cue whose end is not after
	// its start. Zero or negative means DefaultMinCueDuration; anything under
	// a millisecond counts as one millisecond.
	MinCueDuration time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{MinCueDuration: DefaultMinCueDuration}
}

func (p Policy) minCueMillis() int64 {
	if p.MinCueDuration <= 0 {
		return DefaultMinCueDuration.Milliseconds()
	}
	return min(max(p.MinCueDuration.Milliseconds(), 1), MaxTimestampMillis)
}

// ValidateOffset rejects offsets Shift cannot apply meaningfully.
func ValidateOffset(offsetSeconds float64) error {
	if math.IsNaN(offsetSeconds) || math.IsInf(offsetSeconds, 0) || math.Abs(offsetSeconds) > MaxOffsetSeconds {
		return ErrInvalidOffset
	}
	return nil
}

// ParseTimestamp converts "HH:MM:SS,mmm" into milliseconds.
func ParseTimestamp(ts string) (int64, error) {
	if len(ts) != 12 || ts[2] != ':' || ts[5] != ':' || ts[8] != ',' {
		return 0, fmt.Errorf("subtitle: malformed timestamp %q", ts)
	}
	var fields [4]int64
	for i, span := range [4][2]int{{0, 2}, {3, 5}, {6, 8}, {9, 12}} {
		var v int64
		for _, c := range ts[span[0]:span[1]] {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("subtitle: malformed timestamp %q", ts)
			}
			v = v*10 + int64(c-'0')
		}
		fields[i] = v
	}
	return fields[0]*3_600_000 + fields[1]*60_000 + fields[2]*1_000 + fields[3], nil
}

// FormatTimestamp renders milliseconds as "HH:MM:SS,mmm". Input is clamped
// to [0, MaxTimestampMillis] so the result always parses back.
func FormatTimestamp(ms int64) string {
	ms = clampMillis(ms)
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1_000
	ms -= s * 1_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// OffsetMillis converts an offset in seconds to whole milliseconds, rounding
// half away from zero. The result saturates at ±MaxTimestampMillis and NaN
// converts to zero.
func OffsetMillis(offsetSeconds float64) int64 {
	if math.IsNaN(offsetSeconds) {
		return 0
	}
	ms := math.Round(offsetSeconds * 1000)
	limit := float64(MaxTimestampMillis)
	return int64(min(max(ms, -limit), limit))
}

// Shift moves every cue by offsetSeconds. Both ends are clamped to
// [0, MaxTimestampMillis] and a cue whose end is not after its start gets the
// policy's minimum duration. A cue pinned at the upper bound keeps that
// duration by moving its start back. Blocks with unparsable timestamps are
// dropped. The input is not modified.
//
// Shifting is not idempotent: applying o twice moves cues by 2*o.
func Shift(blocks []Block, offsetSeconds float64, policy Policy) []Block {
	delta := OffsetMillis(offsetSeconds)
	minDur := policy.minCueMillis()

	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		start, err := ParseTimestamp(b.StartTime)
		if err != nil {
			continue
		}
		end, err := ParseTimestamp(b.EndTime)
		if err != nil {
			continue
		}

		start = clampMillis(start + delta)
		end = clampMillis(end + delta)
		if end <= start {
			end = start + minDur
			if end > MaxTimestampMillis {
				end = MaxTimestampMillis
				start = end - minDur
			}
		}

		text := make([]string, len(b.Text))
		copy(text, b.Text)
		out = append(out, Block{
			Index:     b.Index,
			StartTime: FormatTimestamp(start),
			EndTime:   FormatTimestamp(end),
			Position:  b.Position,
			Text:      text,
		})
	}
	return out
}

func clampMillis(ms int64) int64 {
	return min(max(ms, 0), MaxTimestampMillis)
}

// AdjustDocument parses doc, shifts every cue and renders the result.
// It returns the new document and the number of cues it contains.
func AdjustDocument(doc string, offsetSeconds float64, policy Policy) (string, int) {
	shifted := Shift(Parse(doc), offsetSeconds, policy)
	return Render(shifted), len(shifted)
}
