package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/villagestay/whatsapp-bot/internal/listings"
)

// Reply templates use WhatsApp's in-band markup (*bold*, emoji). The exact
// bytes matter: they are covered by golden tests and the rendered output is
// what guests see.

const welcomeReply = `🏡 *Welcome to VillageStay!* 🌾

I can help you find and book authentic rural stays across India!

What would you like to do?

1️⃣ *Search stays* - "Find stays in Goa"
2️⃣ *Popular destinations* - See trending places
3️⃣ *Help* - Get assistance

Just tell me where you'd like to stay! 🗺️`

const noResultsReply = `🔍 No stays found. Try:
- "Goa homestays"
- "Kerala farmstays"
- "Rajasthan village stays"

Or type 'popular' for trending destinations.`

const detailsRepromptReply = `Please provide booking details:

📅 Dates (e.g., "Dec 25 to Dec 28")
👥 Guests (e.g., "2 guests")

Example: "Dec 25 to Dec 28, 2 guests" ✍️`

const apologyReply = "Sorry, I encountered an error. Please try again or type 'help'."

const paymentLinkBase = "https://villagestay.com/pay/"

// shown per results page; selection parsing accepts 1-3 to match
const maxDisplayedResults = 3

func resultsReply(results []listings.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏠 *Found %d stays:*\n\n", len(results))

	for i, l := range results {
		if i == maxDisplayedResults {
			break
		}
		fmt.Fprintf(&b, "*%d. %s*\n", i+1, l.Title)
		fmt.Fprintf(&b, "📍 %s\n", l.Location)
		fmt.Fprintf(&b, "💰 ₹%d/night\n", l.Price)
		fmt.Fprintf(&b, "⭐ %s\n\n", formatRating(l.Rating))
	}

	b.WriteString("Reply with number (1-3) to book or search again! 📱")
	return b.String()
}

func selectionReply(l listings.Listing) string {
	propertyType := l.Type
	if propertyType == "" {
		propertyType = "Homestay"
	}
	return fmt.Sprintf(`✨ *%s*

📍 %s
💰 ₹%d/night
🏠 %s

*Ready to book?*

Please provide:
📅 Check-in date (e.g., "Dec 25")
📅 Check-out date (e.g., "Dec 28")
👥 Number of guests (e.g., "2")

Example: "Dec 25 to Dec 28, 2 guests" 🎯`, l.Title, l.Location, l.Price, propertyType)
}

func confirmationReply(reference string, l listings.Listing, details BookingDetails) string {
	dates := details.Dates
	if dates == "" {
		dates = "As requested"
	}
	guests := details.Guests
	if guests == "" {
		guests = "2"
	}
	total := details.TotalRupees
	if total == 0 {
		total = l.Price * 2
	}
	return fmt.Sprintf(`🎉 *Booking Confirmed!*

📋 *Booking ID:* %s
🏡 *Property:* %s
📅 *Dates:* %s
👥 *Guests:* %s
💰 *Total:* ₹%s

📧 *Payment Link:* %s%s

The host will contact you soon! ✨

Need help? Just message me! 📱`, reference, l.Title, dates, guests, formatRupees(total), paymentLinkBase, reference)
}

func formatRating(rating float64) string {
	if rating == 0 {
		return "New"
	}
	return strconv.FormatFloat(rating, 'g', -1, 64)
}

// formatRupees renders an amount with thousands separators, e.g. 5000 ->
// "5,000".
func formatRupees(amount int) string {
	s := strconv.Itoa(amount)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
