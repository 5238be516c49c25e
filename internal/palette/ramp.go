package palette

import (
	"fmt"
	"math"
	"strings"

	"github.com/hsluv/hsluv-go"
	"github.com/mazznoer/csscolorparser"
)

// Ramp is a three-stop sequential color scale.
type Ramp struct {
	Min string
	Mid string
	Max string
}

type hsl struct{ h, s, l float64 }

// Colors returns n colors evenly spaced along min → mid → max,
// interpolated in HSLuv so lightness steps look even.
func (r Ramp) Colors(n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	stops := make([]hsl, 0, 3)
	for _, c := range []string{r.Min, r.Mid, r.Max} {
		if c == "" {
			continue
		}
		parsed, err := parseColor(c)
		if err != nil {
			return nil, err
		}
		stops = append(stops, parsed)
	}
	if len(stops) == 0 {
		return nil, fmt.Errorf("palette: empty ramp")
	}
	out := make([]string, n)
	if n == 1 || len(stops) == 1 {
		for i := range out {
			out[i] = hsluv.HsluvToHex(stops[0].h, stops[0].s, stops[0].l)
		}
		return out, nil
	}

	segments := float64(len(stops) - 1)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1) * segments
		seg := int(math.Floor(t))
		if seg >= len(stops)-1 {
			seg = len(stops) - 2
		}
		c := mix(stops[seg], stops[seg+1], t-float64(seg))
		out[i] = hsluv.HsluvToHex(c.h, c.s, c.l)
	}
	return out, nil
}

func mix(a, b hsl, t float64) hsl {
	ha, hb := a.h, b.h
	// Achromatic ends have no meaningful hue; borrow the other end's.
	if a.s < 1e-6 {
		ha = hb
	}
	if b.s < 1e-6 {
		hb = ha
	}
	dh := hb - ha
	if dh > 180 {
		dh -= 360
	} else if dh < -180 {
		dh += 360
	}
	h := math.Mod(ha+dh*t+360, 360)
	return hsl{
		h: h,
		s: a.s + (b.s-a.s)*t,
		l: a.l + (b.l-a.l)*t,
	}
}

// ParseColor normalizes a CSS color (hex, named, rgb(), hsl()) to #rrggbb.
// Alpha is dropped.
func ParseColor(c string) (string, error) {
	parsed, err := csscolorparser.Parse(strings.TrimSpace(c))
	if err != nil {
		return "", fmt.Errorf("palette: unsupported color %q: %w", c, err)
	}
	return fmt.Sprintf("#%02x%02x%02x", channel(parsed.R), channel(parsed.G), channel(parsed.B)), nil
}

func channel(v float64) int {
	return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

func parseColor(c string) (hsl, error) {
	hex, err := ParseColor(c)
	if err != nil {
		return hsl{}, err
	}
	h, s, l := hsluv.HsluvFromHex(hex)
	return hsl{h: h, s: s, l: l}, nil
}
