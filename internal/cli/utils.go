// Package cli provides CLI output formatting for roadtrip.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/henryzhan013/roadtrip-planner/internal/models"
	"github.com/henryzhan013/roadtrip-planner/pkg/utils"
)

// OutputFormat is the format for vibe search output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// countPrinter groups review counts by thousands for display.
var countPrinter = message.NewPrinter(language.English)

// WriteVibeResults writes vibe matches to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteVibeResults(w io.Writer, response *models.VibeResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeVibeResultsText(w, response)
		return nil
	}
}

func writeVibeResultsText(w io.Writer, response *models.VibeResponse) {
	fmt.Fprintf(w, "\nFound %d matches for %q\n", len(response.Results), response.Query)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	for i := range response.Results {
		writeOneMatch(w, &response.Results[i], i+1)
	}
}

func writeOneMatch(w io.Writer, m *models.VibeMatch, rank int) {
	rating := "N/A"
	if m.Rating != nil {
		rating = fmt.Sprintf("%.1f", *m.Rating)
	}
	desc := m.Description
	if desc == "" {
		desc = "(no description)"
	}
	fmt.Fprintf(w, "\n%d. %s\n", rank, m.Name)
	fmt.Fprintf(w, "   Location: %s\n", Location(m.Address))
	fmt.Fprintf(w, "   Rating: %s (%s reviews)\n", rating, countPrinter.Sprintf("%d", m.RatingCount))
	fmt.Fprintf(w, "   Match: %.1f%%\n", m.Score*100)
	fmt.Fprintf(w, "   %s\n", utils.Truncate(desc, 100))
}

// PrintVibeResults prints vibe matches to stdout in text format.
func PrintVibeResults(response *models.VibeResponse) {
	_ = WriteVibeResults(os.Stdout, response, OutputText)
}

// Location extracts the city and state segments from a formatted
// address, which usually ends with "City, ST ZIP, Country".
func Location(address string) string {
	if address == "" {
		return "Unknown"
	}
	parts := strings.Split(address, ", ")
	lo := len(parts) - 3
	if lo < 0 {
		lo = 0
	}
	hi := len(parts) - 1
	if hi < lo {
		hi = lo
	}
	return strings.Join(parts[lo:hi], ", ")
}
