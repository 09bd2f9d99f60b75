package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner writes the CLI startup banner to w and logs the effective settings.
func PrintBanner(w io.Writer, config *Config, logger *Logger) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 60
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	fmt.Fprintf(w, "%s\n", hr)
	fmt.Fprintf(w, "%s  PRICE HISTORY%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(w, "%s\n", hr)

	kvPad := 16
	kvLines := [][2]string{
		{"Version", GetFullVersion()},
		{"Environment", config.Environment},
		{"Storage", config.Storage.Describe()},
		{"Lookback", fmt.Sprintf("%d years", config.History.YearsToCheck)},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(w, "%s  %-*s %s%s\n", textColor, kvPad, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(w, "%s\n", hr)

	logger.Debug().
		Str("version", Version).
		Str("environment", config.Environment).
		Str("storage", config.Storage.Describe()).
		Int("years_to_check", config.History.YearsToCheck).
		Msg("Application started")
}
