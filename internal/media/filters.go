// SPDX-License-Identifier: MIT

package media

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FilterBuilder assembles a comma separated ffmpeg filter chain.
type FilterBuilder struct {
	filters []string
}

// Add appends a filter unless it is empty.
func (fb *FilterBuilder) Add(filter string) *FilterBuilder {
	if filter != "" {
		fb.filters = append(fb.filters, filter)
	}
	return fb
}

// Addf appends a formatted filter.
func (fb *FilterBuilder) Addf(format string, args ...any) *FilterBuilder {
	return fb.Add(fmt.Sprintf(format, args...))
}

// Empty reports whether no filter was added.
func (fb *FilterBuilder) Empty() bool { return len(fb.filters) == 0 }

// Build joins the chain.
func (fb *FilterBuilder) Build() string {
	return strings.Join(fb.filters, ",")
}

// Effects are the simple visual adjustments the editor offers.
type Effects struct {
	Grayscale bool `json:"grayscale,omitempty"`
	Sepia     bool `json:"sepia,omitempty"`
	Mirror    bool `json:"mirror,omitempty"`
	// Blur is a gaussian sigma in pixels, 0 disables it.
	Blur float64 `json:"blur,omitempty"`
	// Brightness is added to luma, -1..1.
	Brightness float64 `json:"brightness,omitempty"`
	// Contrast multiplies luma contrast, 0..3. Zero means unchanged.
	Contrast float64 `json:"contrast,omitempty"`
	// Speed is a playback rate, 0.25..4. Zero means unchanged.
	Speed float64 `json:"speed,omitempty"`
}

const sepiaMatrix = "colorchannelmixer=.393:.769:.189:0:.349:.686:.168:0:.272:.534:.131"

func (e Effects) validate() error {
	if e.Blur < 0 || e.Blur > 50 {
		return invalid("blur must be within 0..50")
	}
	if e.Brightness < -1 || e.Brightness > 1 {
		return invalid("brightness must be within -1..1")
	}
	if e.Contrast < 0 || e.Contrast > 3 {
		return invalid("contrast must be within 0..3")
	}
	if e.Speed != 0 && (e.Speed < 0.25 || e.Speed > 4) {
		return invalid("speed must be within 0.25..4")
	}
	return nil
}

func (e Effects) speed() float64 {
	if e.Speed == 0 {
		return 1
	}
	return e.Speed
}

// active reports whether at least one effect is set.
func (e Effects) active() bool {
	return e.Grayscale || e.Sepia || e.Mirror || e.Blur > 0 || e.Brightness != 0 ||
		(e.Contrast != 0 && e.Contrast != 1) || e.speed() != 1
}

func (e Effects) videoFilters(fb *FilterBuilder) {
	if e.Mirror {
		fb.Add("hflip")
	}
	if e.Grayscale {
		fb.Add("hue=s=0")
	}
	if e.Sepia {
		fb.Add(sepiaMatrix)
	}
	if e.Blur > 0 {
		fb.Addf("gblur=sigma=%s", num(e.Blur))
	}
	if e.Brightness != 0 || (e.Contrast != 0 && e.Contrast != 1) {
		contrast := e.Contrast
		if contrast == 0 {
			contrast = 1
		}
		fb.Addf("eq=brightness=%s:contrast=%s", num(e.Brightness), num(contrast))
	}
	if s := e.speed(); s != 1 {
		fb.Addf("setpts=PTS/%s", num(s))
	}
}

func (e Effects) audioFilters(fb *FilterBuilder) {
	s := e.speed()
	if s == 1 {
		return
	}
	// atempo accepts 0.5..2 per instance, so larger factors are chained.
	for s > 2 {
		fb.Add("atempo=2")
		s /= 2
	}
	for s < 0.5 {
		fb.Add("atempo=0.5")
		s /= 0.5
	}
	fb.Addf("atempo=%s", num(s))
}

// num formats seconds and factors without trailing zeros.
func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// secs formats a timestamp with millisecond precision.
func secs(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

var (
	dimensionsRe = regexp.MustCompile(`^(\d{2,5})x(\d{2,5})$`)
	heightRe     = regexp.MustCompile(`^(\d{3,4})p$`)
)

// scaleFilter converts "1280x720", "720p" or "original" into a scale filter.
func scaleFilter(resolution string) (string, error) {
	r := strings.ToLower(strings.TrimSpace(resolution))
	if r == "" || r == "original" {
		return "", nil
	}
	if m := dimensionsRe.FindStringSubmatch(r); m != nil {
		return "scale=" + m[1] + ":" + m[2], nil
	}
	if m := heightRe.FindStringSubmatch(r); m != nil {
		return "scale=-2:" + m[1], nil
	}
	return "", invalid("unsupported resolution %q", resolution)
}

// bitrate accepts values like "128k", "2M" or "2500000".
var bitrateRe = regexp.MustCompile(`^\d+(\.\d+)?[kKmM]?$`)

func validBitrate(b string) bool {
	return b == "" || bitrateRe.MatchString(b)
}
