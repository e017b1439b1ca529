package conversation

import (
	"strings"

	"github.com/villagestay/whatsapp-bot/internal/listings"
)

// State identifies the step of the booking dialog a conversation is in.
type State string

const (
	StateGreeting  State = "greeting"
	StateSearching State = "searching"
	StateBooking   State = "booking"
	StateDetails   State = "details"
	StateCompleted State = "completed"
)

// Status distinguishes the single active conversation per identity from
// soft-closed ones.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Data holds the transient session fields a conversation carries between
// messages. Handlers only rely on keys written for the current state.
type Data struct {
	SearchResults   []listings.Listing `dynamodbav:"searchResults,omitempty" json:"search_results,omitempty"`
	SelectedListing *listings.Listing  `dynamodbav:"selectedListing,omitempty" json:"selected_listing,omitempty"`
}

// Conversation is the persisted state of one guest's dialog. Revision is a
// monotonically increasing stamp; every commit is conditional on it so that
// two near-simultaneous messages from the same guest cannot both win.
type Conversation struct {
	Identity     string `dynamodbav:"identity" json:"identity"`
	State        State  `dynamodbav:"state" json:"state"`
	Status       Status `dynamodbav:"status" json:"status"`
	Data         Data   `dynamodbav:"data" json:"data"`
	CreatedAt    string `dynamodbav:"createdAt" json:"created_at"`
	LastActivity string `dynamodbav:"lastActivity" json:"last_activity"`
	Revision     int64  `dynamodbav:"revision" json:"revision"`
}

// NormalizeIdentity strips the channel prefix and surrounding whitespace
// from a raw sender address.
func NormalizeIdentity(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, "whatsapp:", ""))
}
