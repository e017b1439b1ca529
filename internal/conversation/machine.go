package conversation

import (
	"context"

	"github.com/villagestay/whatsapp-bot/internal/listings"
	"github.com/villagestay/whatsapp-bot/internal/observability/metrics"
	"github.com/villagestay/whatsapp-bot/pkg/logging"
)

// ConversationStore loads and commits conversation state.
type ConversationStore interface {
	LoadOrCreate(ctx context.Context, identity string) (*Conversation, error)
	Commit(ctx context.Context, conv *Conversation, next State, data *Data) error
	Complete(ctx context.Context, conv *Conversation) error
}

// ListingFinder resolves a free-text query to candidate listings. It never
// fails; catalog trouble degrades to demo listings inside the finder.
type ListingFinder interface {
	Search(ctx context.Context, query string) []listings.Listing
}

// BookingRecorder persists a confirmed booking and returns its reference.
type BookingRecorder interface {
	Create(ctx context.Context, listing listings.Listing, details BookingDetails, identity string) (string, error)
}

// IdentityLocker serializes message handling per identity. Acquire blocks
// briefly; the returned release must be called when handling finishes.
type IdentityLocker interface {
	Acquire(ctx context.Context, identity string) (release func(), err error)
}

// ReplyMessenger delivers a reply to the guest's messaging channel.
type ReplyMessenger interface {
	SendReply(ctx context.Context, to, body string) error
}

type result struct {
	reply    string
	next     State
	data     *Data // nil leaves stored session data untouched
	complete bool  // soft-close the conversation instead of transitioning
}

type handlerFunc func(ctx context.Context, conv *Conversation, input string) (result, error)

// Machine drives the booking dialog: it loads the conversation for an
// identity, dispatches the message to the handler for the current state,
// commits the transition, and returns the reply text. Every well-formed
// message yields a reply; internal failures leave stored state untouched
// and produce a generic apology.
type Machine struct {
	store    ConversationStore
	finder   ListingFinder
	recorder BookingRecorder
	locker   IdentityLocker
	metrics  *metrics.BotMetrics
	logger   *logging.Logger

	handlers map[State]handlerFunc
}

// NewMachine wires the dialog state machine. locker and botMetrics may be
// nil; the conditional commit still protects against racing messages.
func NewMachine(store ConversationStore, finder ListingFinder, recorder BookingRecorder, locker IdentityLocker, botMetrics *metrics.BotMetrics, logger *logging.Logger) *Machine {
	if store == nil {
		panic("conversation: store cannot be nil")
	}
	if finder == nil {
		panic("conversation: listing finder cannot be nil")
	}
	if recorder == nil {
		panic("conversation: booking recorder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	m := &Machine{
		store:    store,
		finder:   finder,
		recorder: recorder,
		locker:   locker,
		metrics:  botMetrics,
		logger:   logger,
	}
	m.handlers = map[State]handlerFunc{
		StateGreeting:  m.handleGreeting,
		StateSearching: m.handleSearching,
		StateBooking:   m.handleBooking,
		StateDetails:   m.handleDetails,
	}
	return m
}

// ProcessMessage advances the identity's conversation with one inbound
// message and returns the reply text to deliver.
func (m *Machine) ProcessMessage(ctx context.Context, rawIdentity, text string) string {
	identity := NormalizeIdentity(rawIdentity)
	m.logger.Info("processing message", "identity", identity)

	if m.locker != nil {
		release, err := m.locker.Acquire(ctx, identity)
		if err != nil {
			// Proceed anyway: the revision-stamped commit is the backstop.
			m.logger.Warn("identity lock not acquired", "identity", identity, "error", err)
		} else {
			defer release()
		}
	}

	conv, err := m.store.LoadOrCreate(ctx, identity)
	if err != nil {
		m.logger.Error("failed to load conversation", "identity", identity, "error", err)
		return apologyReply
	}

	handler, ok := m.handlers[conv.State]
	if !ok {
		// Unrecognized state falls back to the greeting handler.
		handler = m.handleGreeting
	}

	from := conv.State
	res, err := handler(ctx, conv, text)
	if err != nil {
		m.logger.Error("handler failed", "identity", identity, "state", conv.State, "error", err)
		return apologyReply
	}

	if res.complete {
		err = m.store.Complete(ctx, conv)
	} else {
		err = m.store.Commit(ctx, conv, res.next, res.data)
	}
	if err != nil {
		m.logger.Error("failed to commit transition", "identity", identity, "from", from, "error", err)
		return apologyReply
	}

	m.metrics.ObserveTransition(string(from), string(conv.State))
	return res.reply
}

// handleGreeting welcomes the guest and moves straight to searching; the
// first message's content is ignored.
func (m *Machine) handleGreeting(_ context.Context, _ *Conversation, _ string) (result, error) {
	return result{reply: welcomeReply, next: StateSearching}, nil
}

func (m *Machine) handleSearching(ctx context.Context, conv *Conversation, input string) (result, error) {
	results := m.finder.Search(ctx, SearchQuery(input))
	if len(results) == 0 {
		return result{reply: noResultsReply, next: StateSearching}, nil
	}

	data := conv.Data
	data.SearchResults = results
	return result{reply: resultsReply(results), next: StateBooking, data: &data}, nil
}

func (m *Machine) handleBooking(ctx context.Context, conv *Conversation, input string) (result, error) {
	idx, ok := ParseSelection(input, len(conv.Data.SearchResults))
	if !ok {
		// Anything that isn't a valid selection is a new search.
		return m.handleSearching(ctx, conv, input)
	}

	data := conv.Data
	selected := data.SearchResults[idx]
	data.SelectedListing = &selected
	return result{reply: selectionReply(selected), next: StateDetails, data: &data}, nil
}

func (m *Machine) handleDetails(ctx context.Context, conv *Conversation, input string) (result, error) {
	selected := conv.Data.SelectedListing
	if selected == nil {
		return result{reply: detailsRepromptReply, next: StateDetails}, nil
	}

	details, ok := ParseBookingDetails(input)
	if !ok {
		return result{reply: detailsRepromptReply, next: StateDetails}, nil
	}

	reference, err := m.recorder.Create(ctx, *selected, details, conv.Identity)
	if err != nil {
		// A failed write is treated like insufficient info: re-prompt and
		// leave the conversation where it is.
		m.logger.Error("booking creation failed", "identity", conv.Identity, "listing_id", selected.ID, "error", err)
		return result{reply: detailsRepromptReply, next: StateDetails}, nil
	}

	m.logger.Info("booking confirmed", "identity", conv.Identity, "listing_id", selected.ID, "reference", reference)
	return result{reply: confirmationReply(reference, *selected, details), complete: true}, nil
}
