package listings

import (
	"context"

	"github.com/villagestay/whatsapp-bot/pkg/logging"
)

type searcher interface {
	Search(ctx context.Context, query string) ([]Listing, error)
}

// Service wraps catalog search with the demo fallback. A nil repository is
// allowed and means the service always serves the fallback set.
type Service struct {
	repo   searcher
	logger *logging.Logger
}

// NewService creates a listing search service.
func NewService(repo searcher, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Search returns up to 5 candidate listings for the query. Lookup failures
// and empty result sets both degrade to the fixed demo listings; callers
// never see an error.
func (s *Service) Search(ctx context.Context, query string) []Listing {
	if s.repo == nil {
		return Fallback()
	}
	results, err := s.repo.Search(ctx, query)
	if err != nil {
		s.logger.Warn("catalog search failed, serving demo listings", "error", err)
		return Fallback()
	}
	if len(results) == 0 {
		return Fallback()
	}
	return results
}
