// SPDX-License-Identifier: MIT

package media

import (
	"fmt"
	"math"
	"strings"
)

// Command is one ffmpeg invocation: the argv after the binary name and the
// file it writes.
type Command struct {
	Op     string
	Args   []string
	Output string
}

// Operation names used in metrics and errors.
const (
	OpCut     = "cut"
	OpMerge   = "merge"
	OpAudio   = "audio"
	OpEffects = "effects"
	OpSample  = "sample"
)

var globalArgs = []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}

func newArgs() []string {
	return append([]string(nil), globalArgs...)
}

// CutSpec selects a time range of one input and how to encode it.
type CutSpec struct {
	Input        string  `json:"-"`
	Output       string  `json:"-"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Container    string  `json:"container,omitempty"`
	VideoCodec   string  `json:"videoCodec,omitempty"`
	AudioCodec   string  `json:"audioCodec,omitempty"`
	VideoBitrate string  `json:"videoBitrate,omitempty"`
	AudioBitrate string  `json:"audioBitrate,omitempty"`
	Resolution   string  `json:"resolution,omitempty"`
	FadeIn       float64 `json:"fadeIn,omitempty"`
	FadeOut      float64 `json:"fadeOut,omitempty"`
	Effects      Effects `json:"effects,omitzero"`
}

func validateRange(start, end float64) error {
	if math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0) {
		return invalid("start and end must be finite")
	}
	if start < 0 {
		return invalid("start must not be negative")
	}
	if end <= start {
		return invalid("end (%s) must be greater than start (%s)", secs(end), secs(start))
	}
	return nil
}

func validateFades(fadeIn, fadeOut, duration float64) error {
	if fadeIn < 0 || fadeOut < 0 {
		return invalid("fades must not be negative")
	}
	if fadeIn >= duration || fadeOut >= duration || fadeIn+fadeOut > duration {
		return invalid("fades must be shorter than the clip")
	}
	return nil
}

func requirePaths(input, output string) error {
	if input == "" || output == "" {
		return invalid("input and output paths are required")
	}
	return nil
}

// encodeArgs appends codec and bitrate selection for the container.
func encodeArgs(args []string, c container, videoCodec, audioCodec, videoBitrate, audioBitrate string) ([]string, error) {
	if !validBitrate(videoBitrate) || !validBitrate(audioBitrate) {
		return nil, invalid("bitrates look like 128k or 2M")
	}
	switch {
	case c.audioOnly:
		args = append(args, "-vn")
	default:
		vc := firstNonEmpty(videoCodec, c.videoCodec)
		args = append(args, "-c:v", vc)
		if vc == "libx264" {
			args = append(args, "-preset", "veryfast", "-pix_fmt", "yuv420p")
			if videoBitrate == "" {
				args = append(args, "-crf", "23")
			}
		}
		if videoBitrate != "" {
			args = append(args, "-b:v", videoBitrate)
		}
	}
	if c.silent {
		args = append(args, "-an")
	} else {
		args = append(args, "-c:a", firstNonEmpty(audioCodec, c.audioCodec))
		if audioBitrate != "" {
			args = append(args, "-b:a", audioBitrate)
		}
	}
	return append(args, c.extra...), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// BuildCutArgs produces the ffmpeg argv that cuts [Start, End) out of Input.
// Seeking happens before -i so ffmpeg skips decoding the prefix.
func BuildCutArgs(spec CutSpec) (Command, error) {
	if err := requirePaths(spec.Input, spec.Output); err != nil {
		return Command{}, err
	}
	if err := validateRange(spec.Start, spec.End); err != nil {
		return Command{}, err
	}
	_, c, err := lookupContainer(spec.Container)
	if err != nil {
		return Command{}, err
	}
	if err := spec.Effects.validate(); err != nil {
		return Command{}, err
	}
	// Fades are placed on the output timeline, which speed effects compress.
	duration := (spec.End - spec.Start) / spec.Effects.speed()
	if err := validateFades(spec.FadeIn, spec.FadeOut, duration); err != nil {
		return Command{}, err
	}

	args := newArgs()
	args = append(args, "-ss", secs(spec.Start), "-i", spec.Input, "-t", secs(spec.End-spec.Start))

	if !c.audioOnly {
		var vf FilterBuilder
		scale, err := scaleFilter(spec.Resolution)
		if err != nil {
			return Command{}, err
		}
		vf.Add(scale)
		spec.Effects.videoFilters(&vf)
		if spec.FadeIn > 0 {
			vf.Addf("fade=t=in:st=0:d=%s", secs(spec.FadeIn))
		}
		if spec.FadeOut > 0 {
			vf.Addf("fade=t=out:st=%s:d=%s", secs(duration-spec.FadeOut), secs(spec.FadeOut))
		}
		if c.videoCodec == "gif" {
			vf.Add("fps=12")
		}
		if !vf.Empty() {
			args = append(args, "-vf", vf.Build())
		}
	}
	if !c.silent {
		var af FilterBuilder
		spec.Effects.audioFilters(&af)
		if spec.FadeIn > 0 {
			af.Addf("afade=t=in:st=0:d=%s", secs(spec.FadeIn))
		}
		if spec.FadeOut > 0 {
			af.Addf("afade=t=out:st=%s:d=%s", secs(duration-spec.FadeOut), secs(spec.FadeOut))
		}
		if !af.Empty() {
			args = append(args, "-af", af.Build())
		}
	}

	args, err = encodeArgs(args, c, spec.VideoCodec, spec.AudioCodec, spec.VideoBitrate, spec.AudioBitrate)
	if err != nil {
		return Command{}, err
	}
	return Command{Op: OpCut, Args: append(args, spec.Output), Output: spec.Output}, nil
}

// Clip is one input range of a merge.
type Clip struct {
	Input string  `json:"-"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// MergeSpec joins clips in order.
type MergeSpec struct {
	Clips        []Clip  `json:"clips"`
	Output       string  `json:"-"`
	Container    string  `json:"container,omitempty"`
	Resolution   string  `json:"resolution,omitempty"`
	Crossfade    float64 `json:"crossfade,omitempty"`
	VideoBitrate string  `json:"videoBitrate,omitempty"`
	AudioBitrate string  `json:"audioBitrate,omitempty"`
}

// defaultMergeSize is used when a crossfade needs uniform frames but no
// resolution was requested.
const defaultMergeSize = "1280x720"

// BuildMergeArgs concatenates the clips with a concat filter graph, or with
// xfade/acrossfade when Crossfade is set.
func BuildMergeArgs(spec MergeSpec) (Command, error) {
	if len(spec.Clips) < 2 {
		return Command{}, invalid("merge needs at least two clips")
	}
	if spec.Output == "" {
		return Command{}, invalid("output path is required")
	}
	_, c, err := lookupContainer(spec.Container)
	if err != nil {
		return Command{}, err
	}
	if c.silent {
		return Command{}, invalid("container %q cannot be merged", spec.Container)
	}
	if spec.Crossfade < 0 {
		return Command{}, invalid("crossfade must not be negative")
	}

	args := newArgs()
	durations := make([]float64, len(spec.Clips))
	for i, clip := range spec.Clips {
		if clip.Input == "" {
			return Command{}, invalid("clip %d has no input", i)
		}
		if err := validateRange(clip.Start, clip.End); err != nil {
			return Command{}, fmt.Errorf("clip %d: %w", i, err)
		}
		durations[i] = clip.End - clip.Start
		if spec.Crossfade > 0 && spec.Crossfade >= durations[i] {
			return Command{}, invalid("crossfade must be shorter than clip %d", i)
		}
		args = append(args, "-ss", secs(clip.Start), "-t", secs(durations[i]), "-i", clip.Input)
	}

	resolution := spec.Resolution
	if resolution == "" && spec.Crossfade > 0 && !c.audioOnly {
		resolution = defaultMergeSize
	}
	graph, err := mergeGraph(durations, c.audioOnly, resolution, spec.Crossfade)
	if err != nil {
		return Command{}, err
	}
	args = append(args, "-filter_complex", graph)
	if !c.audioOnly {
		args = append(args, "-map", "[outv]")
	}
	args = append(args, "-map", "[outa]")

	args, err = encodeArgs(args, c, "", "", spec.VideoBitrate, spec.AudioBitrate)
	if err != nil {
		return Command{}, err
	}
	return Command{Op: OpMerge, Args: append(args, spec.Output), Output: spec.Output}, nil
}

func mergeGraph(durations []float64, audioOnly bool, resolution string, crossfade float64) (string, error) {
	n := len(durations)
	var parts []string

	vLabel := func(i int) string { return fmt.Sprintf("[%d:v]", i) }
	aLabel := func(i int) string { return fmt.Sprintf("[%d:a]", i) }

	if !audioOnly && resolution != "" {
		scale, err := scaleFilter(resolution)
		if err != nil {
			return "", err
		}
		if !strings.Contains(scale, "-2") {
			w, h, _ := strings.Cut(strings.TrimPrefix(scale, "scale="), ":")
			scale = fmt.Sprintf("scale=%s:%s:force_original_aspect_ratio=decrease,pad=%s:%s:(ow-iw)/2:(oh-ih)/2", w, h, w, h)
		}
		for i := 0; i < n; i++ {
			parts = append(parts, fmt.Sprintf("[%d:v]%s,setsar=1,fps=30,format=yuv420p[v%d]", i, scale, i))
			parts = append(parts, fmt.Sprintf("[%d:a]aresample=48000[a%d]", i, i))
		}
		vLabel = func(i int) string { return fmt.Sprintf("[v%d]", i) }
		aLabel = func(i int) string { return fmt.Sprintf("[a%d]", i) }
	}

	if crossfade <= 0 {
		var inputs strings.Builder
		for i := 0; i < n; i++ {
			if !audioOnly {
				inputs.WriteString(vLabel(i))
			}
			inputs.WriteString(aLabel(i))
		}
		if audioOnly {
			parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=0:a=1[outa]", inputs.String(), n))
		} else {
			parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=1:a=1[outv][outa]", inputs.String(), n))
		}
		return strings.Join(parts, ";"), nil
	}

	// Each xfade starts crossfade seconds before the accumulated end.
	prevV, prevA := vLabel(0), aLabel(0)
	elapsed := durations[0]
	for i := 1; i < n; i++ {
		outV, outA := fmt.Sprintf("[vx%d]", i), fmt.Sprintf("[ax%d]", i)
		if i == n-1 {
			outV, outA = "[outv]", "[outa]"
		}
		if !audioOnly {
			offset := elapsed - crossfade
			parts = append(parts, fmt.Sprintf("%s%sxfade=transition=fade:duration=%s:offset=%s%s",
				prevV, vLabel(i), secs(crossfade), secs(offset), outV))
		}
		parts = append(parts, fmt.Sprintf("%s%sacrossfade=d=%s%s", prevA, aLabel(i), secs(crossfade), outA))
		elapsed += durations[i] - crossfade
		prevV, prevA = outV, outA
	}
	return strings.Join(parts, ";"), nil
}

// AudioSpec extracts or converts the audio track of Input.
type AudioSpec struct {
	Input      string  `json:"-"`
	Output     string  `json:"-"`
	Format     string  `json:"format,omitempty"`
	Bitrate    string  `json:"bitrate,omitempty"`
	SampleRate int     `json:"sampleRate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
	Normalize  bool    `json:"normalize,omitempty"`
	Start      float64 `json:"start,omitempty"`
	End        float64 `json:"end,omitempty"`
}

// loudnorm targets the EBU R128 streaming loudness.
const loudnorm = "loudnorm=I=-16:TP=-1.5:LRA=11"

// BuildAudioArgs produces the argv for audio extraction.
func BuildAudioArgs(spec AudioSpec) (Command, error) {
	if err := requirePaths(spec.Input, spec.Output); err != nil {
		return Command{}, err
	}
	format := spec.Format
	if format == "" {
		format = "mp3"
	}
	_, c, err := lookupContainer(format)
	if err != nil {
		return Command{}, err
	}
	if !c.audioOnly {
		return Command{}, invalid("%q is not an audio format", format)
	}
	if spec.SampleRate < 0 || spec.SampleRate > 192000 {
		return Command{}, invalid("sampleRate out of range")
	}
	if spec.Channels < 0 || spec.Channels > 8 {
		return Command{}, invalid("channels out of range")
	}

	args := newArgs()
	if spec.End > 0 || spec.Start > 0 {
		if err := validateRange(spec.Start, spec.End); err != nil {
			return Command{}, err
		}
		args = append(args, "-ss", secs(spec.Start), "-i", spec.Input, "-t", secs(spec.End-spec.Start))
	} else {
		args = append(args, "-i", spec.Input)
	}
	if spec.Normalize {
		args = append(args, "-af", loudnorm)
	}
	args, err = encodeArgs(args, c, "", "", "", spec.Bitrate)
	if err != nil {
		return Command{}, err
	}
	if spec.SampleRate > 0 {
		args = append(args, "-ar", fmt.Sprint(spec.SampleRate))
	}
	if spec.Channels > 0 {
		args = append(args, "-ac", fmt.Sprint(spec.Channels))
	}
	return Command{Op: OpAudio, Args: append(args, spec.Output), Output: spec.Output}, nil
}

// EffectSpec re-encodes a whole input with visual effects.
type EffectSpec struct {
	Input      string  `json:"-"`
	Output     string  `json:"-"`
	Container  string  `json:"container,omitempty"`
	Resolution string  `json:"resolution,omitempty"`
	Effects    Effects `json:"effects"`
}

// BuildEffectArgs produces the argv that applies Effects to the full input.
func BuildEffectArgs(spec EffectSpec) (Command, error) {
	if err := requirePaths(spec.Input, spec.Output); err != nil {
		return Command{}, err
	}
	_, c, err := lookupContainer(spec.Container)
	if err != nil {
		return Command{}, err
	}
	if c.audioOnly {
		return Command{}, invalid("effects need a video container")
	}
	if err := spec.Effects.validate(); err != nil {
		return Command{}, err
	}
	scale, err := scaleFilter(spec.Resolution)
	if err != nil {
		return Command{}, err
	}
	if !spec.Effects.active() && scale == "" {
		return Command{}, invalid("no effect requested")
	}

	args := newArgs()
	args = append(args, "-i", spec.Input)

	var vf FilterBuilder
	vf.Add(scale)
	spec.Effects.videoFilters(&vf)
	if c.videoCodec == "gif" {
		vf.Add("fps=12")
	}
	args = append(args, "-vf", vf.Build())
	if !c.silent {
		var af FilterBuilder
		spec.Effects.audioFilters(&af)
		if !af.Empty() {
			args = append(args, "-af", af.Build())
		}
	}
	args, err = encodeArgs(args, c, "", "", "", "")
	if err != nil {
		return Command{}, err
	}
	return Command{Op: OpEffects, Args: append(args, spec.Output), Output: spec.Output}, nil
}

// Song identification samples are short mono 44.1 kHz PCM.
const (
	sampleRate     = 44100
	maxSampleSecs  = 5.0
	sampleChannels = 1
)

// BuildSampleArgs extracts raw mono s16le PCM for song identification.
// Duration is capped at five seconds.
func BuildSampleArgs(input, output string, start, duration float64) (Command, error) {
	if err := requirePaths(input, output); err != nil {
		return Command{}, err
	}
	if duration <= 0 || duration > maxSampleSecs {
		duration = maxSampleSecs
	}
	if err := validateRange(start, start+duration); err != nil {
		return Command{}, err
	}
	args := newArgs()
	args = append(args,
		"-ss", secs(start), "-i", input, "-t", secs(duration),
		"-vn", "-ac", fmt.Sprint(sampleChannels), "-ar", fmt.Sprint(sampleRate),
		"-c:a", "pcm_s16le", "-f", "s16le",
		output,
	)
	return Command{Op: OpSample, Args: args, Output: output}, nil
}
