// SPDX-License-Identifier: MIT

package subtitle

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "1\n00:00:01,000 --> 00:00:03,000\nHello\n\n2\n00:00:10,000 --> 00:00:12,000\nTwo\nlines\n"

func TestParse_ValidDocument(t *testing.T) {
	got := Parse(sample)
	want := []Block{
		{Index: 1, StartTime: "00:00:01,000", EndTime: "00:00:03,000", Text: []string{"Hello"}},
		{Index: 2, StartTime: "00:00:10,000", EndTime: "00:00:12,000", Text: []string{"Two", "lines"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_CRLFAndBOM(t *testing.T) {
	doc := "\ufeff1\r\n00:00:01,000 --> 00:00:02,000\r\nHi\r\n\r\n"
	got := Parse(doc)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"Hi"}, got[0].Text)
}

func TestParse_SkipsMalformedBlocks(t *testing.T) {
	doc := "1\n00:00:01,000 --> 00:00:02,000\n\n" + // only two lines
		"x\n00:00:01,000 --> 00:00:02,000\nbad index\n\n" +
		"3\n0:00:01,000 --> 00:00:02,000\nbad timing\n\n" +
		"4\n00:00:05,000 --> 00:00:06,500\nkept\n"

	got := Parse(doc)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Index)
	assert.Equal(t, "00:00:06,500", got[0].EndTime)
}

func TestParse_EmptyInput(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("\n\n  \n"))
	assert.Empty(t, Parse("not a subtitle file at all"))
}

func TestRender_Format(t *testing.T) {
	blocks := []Block{
		{Index: 1, StartTime: "00:00:01,000", EndTime: "00:00:03,000", Text: []string{"Hello"}},
		{Index: 7, StartTime: "00:01:00,000", EndTime: "00:01:02,250", Text: []string{"a", "b"}},
	}
	want := "1\n00:00:01,000 --> 00:00:03,000\nHello\n\n7\n00:01:00,000 --> 00:01:02,250\na\nb\n"
	assert.Equal(t, want, Render(blocks))
	assert.Equal(t, "", Render(nil))
}

func TestRoundTrip_ParseRender(t *testing.T) {
	first := Parse(sample)
	second := Parse(Render(first))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("round-trip mismatch (-first +second):\n%s", diff)
	}

	shifted := Shift(first, 42.123, DefaultPolicy())
	if diff := cmp.Diff(shifted, Parse(Render(shifted))); diff != "" {
		t.Errorf("round-trip of shifted document mismatch:\n%s", diff)
	}
}

func TestTimestamp_ParseFormat(t *testing.T) {
	tests := []struct {
		in string
		ms int64
	}{
		{"00:00:00,000", 0},
		{"00:00:01,001", 1001},
		{"01:02:03,004", 3_723_004},
		{"99:59:59,999", 359_999_999},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.ms, got)
			assert.Equal(t, tt.in, FormatTimestamp(tt.ms))
		})
	}

	for _, bad := range []string{"", "0:00:00,000", "00:00:00.000", "aa:00:00,000", "00:00:00,00"} {
		_, err := ParseTimestamp(bad)
		assert.Error(t, err, "expected error for %q", bad)
	}

	assert.Equal(t, "00:00:00,000", FormatTimestamp(-50))
	assert.Equal(t, "99:59:59,999", FormatTimestamp(MaxTimestampMillis+1))
}

func TestShift_PositiveOffset(t *testing.T) {
	in := []Block{{Index: 1, StartTime: "00:00:10,000", EndTime: "00:00:12,000", Text: []string{"x"}}}
	got := Shift(in, 2.5, DefaultPolicy())
	require.Len(t, got, 1)
	assert.Equal(t, "00:00:12,500", got[0].StartTime)
	assert.Equal(t, "00:00:14,500", got[0].EndTime)

	// input untouched
	assert.Equal(t, "00:00:10,000", in[0].StartTime)
}

func TestShift_ClampAndMinimumDuration(t *testing.T) {
	in := Parse("1\n00:00:01,000 --> 00:00:03,000\nHello\n")
	got := Shift(in, -5, DefaultPolicy())
	require.Len(t, got, 1)
	assert.Equal(t, "00:00:00,000", got[0].StartTime)
	assert.Equal(t, "00:00:01,000", got[0].EndTime)
	assert.Equal(t, []string{"Hello"}, got[0].Text)
}

func TestShift_StartClampsToZeroEndSurvives(t *testing.T) {
	in := []Block{{Index: 1, StartTime: "00:00:02,000", EndTime: "00:00:08,000", Text: []string{"x"}}}
	got := Shift(in, -3, DefaultPolicy())
	assert.Equal(t, "00:00:00,000", got[0].StartTime)
	assert.Equal(t, "00:00:05,000", got[0].EndTime)
}

func TestShift_ConfigurableMinimumDuration(t *testing.T) {
	in := []Block{{Index: 1, StartTime: "00:00:01,000", EndTime: "00:00:02,000", Text: []string{"x"}}}
	got := Shift(in, -10, Policy{MinCueDuration: 250 * time.Millisecond})
	assert.Equal(t, "00:00:00,000", got[0].StartTime)
	assert.Equal(t, "00:00:00,250", got[0].EndTime)
}

func TestShift_ZeroLengthInputCueIsRepaired(t *testing.T) {
	in := []Block{{Index: 1, StartTime: "00:00:05,000", EndTime: "00:00:05,000", Text: []string{"x"}}}
	got := Shift(in, 0, DefaultPolicy())
	assert.Equal(t, "00:00:06,000", got[0].EndTime)
}

func TestShift_EndAlwaysAfterStart(t *testing.T) {
	blocks := Parse(sample + "\n3\n00:00:00,500 --> 00:00:00,700\nshort\n\n4\n99:59:59,000 --> 99:59:59,500\nlate\n")
	offsets := []float64{-1e300, -360_000, -100, -11, -10.5, -2, -0.001, 0, 0.25, 3.3333, 3600, 359_999.999, 1e300}
	policies := []Policy{DefaultPolicy(), {MinCueDuration: 500 * time.Microsecond}, {MinCueDuration: 250 * time.Hour}}
	for _, policy := range policies {
		for _, off := range offsets {
			for _, b := range Shift(blocks, off, policy) {
				start, err := ParseTimestamp(b.StartTime)
				require.NoError(t, err)
				end, err := ParseTimestamp(b.EndTime)
				require.NoError(t, err)
				assert.Greater(t, end, start, "policy %v offset %v cue %d", policy.MinCueDuration, off, b.Index)
				assert.GreaterOrEqual(t, start, int64(0))
				assert.LessOrEqual(t, end, MaxTimestampMillis)
			}
		}
	}
}

func TestShift_SubMillisecondMinimumRoundsUp(t *testing.T) {
	out, n := AdjustDocument("1\n00:00:01,000 --> 00:00:03,000\nHello\n", -5, Policy{MinCueDuration: 500 * time.Microsecond})
	assert.Equal(t, 1, n)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:00,001\nHello\n", out)
}

func TestShift_UpperBound(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		offset    float64
		wantStart string
		wantEnd   string
	}{
		{"end clamps", "00:00:10,000 --> 99:59:59,000", 2, "00:00:12,000", "99:59:59,999"},
		{"both clamp", "99:59:59,000 --> 99:59:59,500", 2, "99:59:58,999", "99:59:59,999"},
		{"largest valid offset", "00:00:00,000 --> 00:00:02,000", 359_999.999, "99:59:58,999", "99:59:59,999"},
		{"huge positive offset saturates", "00:00:10,000 --> 00:00:12,000", 1e300, "99:59:58,999", "99:59:59,999"},
		{"huge negative offset saturates", "00:00:10,000 --> 00:00:12,000", -1e300, "00:00:00,000", "00:00:01,000"},
		{"NaN leaves cues in place", "00:00:10,000 --> 00:00:12,000", math.NaN(), "00:00:10,000", "00:00:12,000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := Parse("1\n" + tt.in + "\nx\n")
			require.Len(t, blocks, 1)
			got := Shift(blocks, tt.offset, DefaultPolicy())
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantStart, got[0].StartTime)
			assert.Equal(t, tt.wantEnd, got[0].EndTime)

			reparsed := Parse(Render(got))
			if diff := cmp.Diff(got, reparsed); diff != "" {
				t.Errorf("shifted cue does not survive a render round-trip:\n%s", diff)
			}
		})
	}
}

func TestValidateOffset(t *testing.T) {
	for _, ok := range []float64{0, -5, 2.5, 359_999.999, -359_999.999} {
		assert.NoError(t, ValidateOffset(ok), "offset %v", ok)
	}
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e300, 360_000, -360_000} {
		assert.ErrorIs(t, ValidateOffset(bad), ErrInvalidOffset, "offset %v", bad)
	}
}

func TestParse_KeepsPositionSuffix(t *testing.T) {
	doc := "1\n00:00:01,000 --> 00:00:02,000  X1:100 X2:200 Y1:10 Y2:20\nHi\n"
	blocks := Parse(doc)
	require.Len(t, blocks, 1)
	assert.Equal(t, "00:00:02,000", blocks[0].EndTime)
	assert.Equal(t, "X1:100 X2:200 Y1:10 Y2:20", blocks[0].Position)

	out, _ := AdjustDocument(doc, 1, DefaultPolicy())
	assert.Equal(t, "1\n00:00:02,000 --> 00:00:03,000 X1:100 X2:200 Y1:10 Y2:20\nHi\n", out)
}

func TestShift_MatchesClampedArithmetic(t *testing.T) {
	blocks := Parse(sample + "\n3\n99:59:00,000 --> 99:59:59,000\nlate\n")
	clamp := func(ms int64) int64 { return min(max(ms, 0), MaxTimestampMillis) }
	for _, off := range []float64{-0.5, 0.9994, 1.2345, 7} {
		got := Shift(blocks, off, DefaultPolicy())
		require.Len(t, got, len(blocks))
		for i, b := range blocks {
			start, err := ParseTimestamp(b.StartTime)
			require.NoError(t, err)
			end, err := ParseTimestamp(b.EndTime)
			require.NoError(t, err)
			assert.Equal(t, FormatTimestamp(clamp(start+OffsetMillis(off))), got[i].StartTime, "offset %v cue %d", off, b.Index)
			assert.Equal(t, FormatTimestamp(clamp(end+OffsetMillis(off))), got[i].EndTime, "offset %v cue %d", off, b.Index)
		}
	}
}

func TestShift_IsNotIdempotent(t *testing.T) {
	blocks := Parse(sample)
	once := Shift(blocks, 1.5, DefaultPolicy())
	twice := Shift(once, 1.5, DefaultPolicy())
	direct := Shift(blocks, 3, DefaultPolicy())

	assert.NotEqual(t, once, twice, "applying the same offset twice must compound")
	if diff := cmp.Diff(direct, twice); diff != "" {
		t.Errorf("two shifts of o should equal one shift of 2o:\n%s", diff)
	}
}

func TestShift_DropsUnparsableTimestamps(t *testing.T) {
	in := []Block{
		{Index: 1, StartTime: "bad", EndTime: "00:00:01,000"},
		{Index: 2, StartTime: "00:00:01,000", EndTime: "00:00:02,000", Text: []string{"ok"}},
	}
	got := Shift(in, 1, DefaultPolicy())
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Index)
}

func TestOffsetMillis_Rounds(t *testing.T) {
	assert.Equal(t, int64(2500), OffsetMillis(2.5))
	assert.Equal(t, int64(-5000), OffsetMillis(-5))
	assert.Equal(t, int64(1), OffsetMillis(0.0006))
	assert.Equal(t, int64(-1), OffsetMillis(-0.0006))
	assert.Equal(t, MaxTimestampMillis, OffsetMillis(1e300))
	assert.Equal(t, -MaxTimestampMillis, OffsetMillis(-1e300))
	assert.Equal(t, int64(0), OffsetMillis(math.NaN()))
}

func TestAdjustDocument(t *testing.T) {
	out, n := AdjustDocument("1\n00:00:10,000 --> 00:00:12,000\nHi\n", 2.5, DefaultPolicy())
	assert.Equal(t, 1, n)
	assert.Equal(t, "1\n00:00:12,500 --> 00:00:14,500\nHi\n", out)

	empty, n := AdjustDocument("garbage", 1, DefaultPolicy())
	assert.Equal(t, 0, n)
	assert.Equal(t, "", empty)
}
