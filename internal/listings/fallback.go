package listings

// Fallback returns the fixed demo listings served whenever the catalog is
// empty or unreachable. The set is identical regardless of what the guest
// searched for; degraded mode still lets the whole booking flow run.
func Fallback() []Listing {
	return []Listing{
		{
			ID:       "mock_1",
			Title:    "Peaceful Village Retreat",
			Location: "Rural Goa",
			Price:    2500,
			Rating:   4.8,
			Type:     "homestay",
		},
		{
			ID:       "mock_2",
			Title:    "Traditional Farm Experience",
			Location: "Kerala Backwaters",
			Price:    3000,
			Rating:   4.6,
			Type:     "farmstay",
		},
		{
			ID:       "mock_3",
			Title:    "Heritage Village Stay",
			Location: "Rajasthan Desert",
			Price:    3500,
			Rating:   4.7,
			Type:     "heritage_home",
		},
	}
}
