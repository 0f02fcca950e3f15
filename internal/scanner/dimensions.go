package scanner

import (
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// dimensions returns the rendered size declared in markup; 0 means unknown.
// Inline style wins over the width/height attributes.
func dimensions(img *goquery.Selection) (int, int) {
	width := parseLength(img.AttrOr("width", ""))
	height := parseLength(img.AttrOr("height", ""))

	style := parseStyle(img.AttrOr("style", ""))
	if n := parseLength(style["width"]); n > 0 {
		width = n
	}
	if n := parseLength(style["height"]); n > 0 {
		height = n
	}
	return width, height
}

// fillMissing completes a partially declared size from intrinsic dimensions,
// keeping the aspect ratio when one side is set.
func fillMissing(width, height, natW, natH int) (int, int) {
	switch {
	case width == 0 && height == 0:
		return natW, natH
	case width == 0 && natH > 0:
		return int(math.Round(float64(height) * float64(natW) / float64(natH))), height
	case height == 0 && natW > 0:
		return width, int(math.Round(float64(width) * float64(natH) / float64(natW)))
	}
	return width, height
}

// parseLength accepts unitless and px values.
func parseLength(v string) int {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.TrimSpace(strings.TrimSuffix(v, "px"))
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return int(math.Round(f))
}

func parseStyle(style string) map[string]string {
	out := map[string]string{}
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important"))
		out[strings.ToLower(strings.TrimSpace(name))] = value
	}
	return out
}
