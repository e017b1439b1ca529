package listings

// Listing is a by-value snapshot of a catalog entry. Copies of these travel
// inside conversation session data, so an in-flight booking keeps the price
// the guest saw even if the catalog row changes underneath it.
type Listing struct {
	ID       string  `json:"id" dynamodbav:"id"`
	Title    string  `json:"title" dynamodbav:"title"`
	Location string  `json:"location" dynamodbav:"location"`
	Price    int     `json:"price" dynamodbav:"price"`
	Rating   float64 `json:"rating" dynamodbav:"rating"`
	Type     string  `json:"type" dynamodbav:"type"`
}
