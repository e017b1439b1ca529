package conversation

import (
	"regexp"
	"strings"
)

// The parsing below is deliberately crude and frozen for compatibility with
// the deployed dialog: guests are assumed to be the trailing number in the
// sentence, and any "to" counts as evidence of a date range. Swapping in a
// smarter parser means changing these functions, nothing else.

var digitRuns = regexp.MustCompile(`\d+`)

// placeholder total charged until real pricing exists
const placeholderTotalRupees = 5000

// BookingDetails is the result of parsing a free-text details message.
type BookingDetails struct {
	Guests      string `dynamodbav:"guests,omitempty" json:"guests,omitempty"`
	Dates       string `dynamodbav:"dates,omitempty" json:"dates,omitempty"`
	TotalRupees int    `dynamodbav:"total,omitempty" json:"total,omitempty"`
}

// ParseSelection reports the zero-based index a guest picked from the
// presented listings. Only the exact trimmed literals "1", "2", "3" count;
// anything else, including an in-range digit embedded in a sentence or a
// selection beyond the stored results, is not a selection.
func ParseSelection(input string, resultCount int) (int, bool) {
	trimmed := strings.TrimSpace(input)
	switch trimmed {
	case "1", "2", "3":
		idx := int(trimmed[0] - '1')
		if idx < resultCount {
			return idx, true
		}
	}
	return 0, false
}

// ParseBookingDetails extracts guest count and date-range evidence from a
// free-text message. The last run of digits is taken as the guest count;
// a case-insensitive "to" anywhere marks the raw message as the dates and
// sets the placeholder total. Returns false when neither is present.
func ParseBookingDetails(input string) (BookingDetails, bool) {
	var details BookingDetails

	if runs := digitRuns.FindAllString(input, -1); len(runs) > 0 {
		details.Guests = runs[len(runs)-1]
	}
	if strings.Contains(strings.ToLower(input), "to") {
		details.Dates = input
		details.TotalRupees = placeholderTotalRupees
	}

	return details, details.Guests != "" || details.Dates != ""
}

// SearchQuery turns a raw message into the catalog query: the text verbatim,
// lower-cased. No tokenization or synonym expansion.
func SearchQuery(input string) string {
	return strings.ToLower(input)
}
