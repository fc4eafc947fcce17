package sheet

import (
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// redIndexed lists the legacy palette slots treated as red.
var redIndexed = []int{2, 10, 16, 37}

// IsHighlighted reports whether a cell is marked with the highlight color.
// It inspects the fill color first, then the indexed palette, then the font color.
// Lookup failures classify the cell as not highlighted. The second return value
// is the first color observed, for diagnostics.
func IsHighlighted(f *excelize.File, sheetName, cell string) (bool, string) {
	styleID, err := f.GetCellStyle(sheetName, cell)
	if err != nil || styleID <= 0 {
		return false, ""
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false, ""
	}

	var observed string
	for _, c := range style.Fill.Color {
		hex := normalizeHex(c)
		if hex == "" {
			continue
		}
		if observed == "" {
			observed = hex
		}
		if isRedRGB(hex) {
			return true, hex
		}
		if isRedIndexed(hex) {
			return true, hex
		}
	}

	if style.Font != nil {
		if hex := normalizeHex(style.Font.Color); hex != "" {
			if observed == "" {
				observed = hex
			}
			if isRedRGB(hex) || isRedIndexed(hex) {
				return true, hex
			}
		}
		if style.Font.ColorIndexed > 0 && style.Font.ColorIndexed < len(excelize.IndexedColorMapping) {
			for _, i := range redIndexed {
				if style.Font.ColorIndexed == i {
					return true, normalizeHex(excelize.IndexedColorMapping[i])
				}
			}
		}
	}

	return false, observed
}

// normalizeHex returns an upper-case RRGGBB string, dropping '#' and an alpha prefix.
func normalizeHex(c string) string {
	c = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(c), "#"))
	if len(c) == 8 {
		c = c[2:]
	}
	if len(c) != 6 {
		return ""
	}
	if _, err := strconv.ParseUint(c, 16, 32); err != nil {
		return ""
	}
	return c
}

// isRedRGB accepts strong reds: high red channel, low green and blue.
func isRedRGB(hex string) bool {
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return false
	}
	r, g, b := (v>>16)&0xFF, (v>>8)&0xFF, v&0xFF
	return r >= 0xC0 && g <= 0x60 && b <= 0x60
}

func isRedIndexed(hex string) bool {
	for _, i := range redIndexed {
		if i < len(excelize.IndexedColorMapping) && normalizeHex(excelize.IndexedColorMapping[i]) == hex {
			return true
		}
	}
	return false
}
