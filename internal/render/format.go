// Package render turns analysis results and session events into terminal
// output and chart images.
package render

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatNumber renders n with thousands separators (1234567 -> "1,234,567").
func FormatNumber(n int) string {
	return humanize.Comma(int64(n))
}

// FormatEntityType turns an entity label into title case words:
// "PRODUCT_NAME" -> "Product Name".
func FormatEntityType(t string) string {
	parts := strings.Split(t, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, " ")
}

// FormatPercent renders a percentage value with one decimal ("72.5%").
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
