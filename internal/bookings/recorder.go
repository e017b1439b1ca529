package bookings

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/villagestay/whatsapp-bot/internal/conversation"
	"github.com/villagestay/whatsapp-bot/internal/listings"
	"github.com/villagestay/whatsapp-bot/pkg/logging"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder persists confirmed bookings.
type Recorder struct {
	pool   execer
	logger *logging.Logger
}

// NewRecorder creates a recorder backed by pgx pool.
func NewRecorder(pool *pgxpool.Pool, logger *logging.Logger) *Recorder {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{pool: pool, logger: logger}
}

func newRecorderWithExec(exec execer, logger *logging.Logger) *Recorder {
	if exec == nil {
		panic("bookings: exec required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{pool: exec, logger: logger}
}

var _ conversation.BookingRecorder = (*Recorder)(nil)

// Create inserts a confirmed booking row and returns its reference code.
func (r *Recorder) Create(ctx context.Context, listing listings.Listing, details conversation.BookingDetails, identity string) (string, error) {
	reference := Reference(identity, time.Now())

	const query = `
		INSERT INTO bookings (
			id, listing_id, identity, guests, dates, total_rupees,
			status, whatsapp_booking, booking_reference
		) VALUES ($1, $2, $3, $4, $5, $6, 'confirmed', TRUE, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		uuid.New(),
		listing.ID,
		identity,
		details.Guests,
		details.Dates,
		details.TotalRupees,
		reference,
	)
	if err != nil {
		return "", fmt.Errorf("bookings: insert confirmed: %w", err)
	}

	r.logger.Info("booking recorded", "identity", identity, "listing_id", listing.ID, "reference", reference)
	return reference, nil
}

// Reference builds the human-readable booking code: a fixed prefix, the UTC
// date, and four digits derived from the identity. The derivation is stable
// and non-cryptographic, so two same-day bookings from one guest collide;
// that gap is accepted upstream.
func Reference(identity string, at time.Time) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return fmt.Sprintf("WA%s%04d", at.UTC().Format("20060102"), h.Sum32()%10000)
}
