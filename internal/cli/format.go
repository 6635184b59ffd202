package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"hoopscan/internal/hoop"
	"hoopscan/internal/matcher"

	"hoopscan/pkg/utils"
)

var (
	bandUp   = color.New(color.FgGreen)
	bandDown = color.New(color.FgRed)
)

// formatBand renders a hoop's price band; open-ended bands show no upper
// bound. Bands entirely above the anchor color green, entirely below red.
func formatBand(h hoop.Hoop) string {
	var s string
	if h.MaxPricePercent == nil {
		s = fmt.Sprintf("[%s, +inf)", utils.FormatPercent(h.MinPricePercent))
	} else {
		s = fmt.Sprintf("[%s, %s]",
			utils.FormatPercent(h.MinPricePercent), utils.FormatPercent(*h.MaxPricePercent))
	}
	switch {
	case h.MinPricePercent >= 0:
		return bandUp.Sprint(s)
	case h.MaxPricePercent != nil && *h.MaxPricePercent <= 0:
		return bandDown.Sprint(s)
	default:
		return s
	}
}

// formatHits renders a match's hit chain as "bar@price" steps.
func formatHits(m matcher.Match) string {
	parts := make([]string, len(m.HitBars))
	for i, bar := range m.HitBars {
		parts[i] = fmt.Sprintf("%d@%.2f", bar, m.HitPrices[i])
	}
	return strings.Join(parts, " > ")
}
