package listings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/villagestay/whatsapp-bot/pkg/logging"
)

type stubSearcher struct {
	results []Listing
	err     error
}

func (s *stubSearcher) Search(_ context.Context, _ string) ([]Listing, error) {
	return s.results, s.err
}

func TestService_SearchPassesThroughResults(t *testing.T) {
	catalog := []Listing{{ID: "abc", Title: "Real Stay", Location: "Goa", Price: 2000, Rating: 4.2, Type: "homestay"}}
	svc := NewService(&stubSearcher{results: catalog}, logging.New("error"))

	results := svc.Search(context.Background(), "goa")
	assert.Equal(t, catalog, results)
}

func TestService_SearchFallsBackOnError(t *testing.T) {
	svc := NewService(&stubSearcher{err: errors.New("db down")}, logging.New("error"))

	results := svc.Search(context.Background(), "goa")
	require.Len(t, results, 3)
	assert.Equal(t, "mock_1", results[0].ID)
}

func TestService_SearchFallsBackOnEmpty(t *testing.T) {
	svc := NewService(&stubSearcher{}, logging.New("error"))

	results := svc.Search(context.Background(), "nowhere at all")
	require.Len(t, results, 3)
	assert.Equal(t, "Peaceful Village Retreat", results[0].Title)
}

func TestService_NilRepositoryServesFallback(t *testing.T) {
	svc := NewService(nil, logging.New("error"))

	results := svc.Search(context.Background(), "anything")
	require.Len(t, results, 3)
}

func TestFallback_ReturnsFreshCopy(t *testing.T) {
	first := Fallback()
	first[0].Title = "mutated"

	second := Fallback()
	assert.Equal(t, "Peaceful Village Retreat", second[0].Title)

	assert.Equal(t, 2500, second[0].Price)
	assert.Equal(t, 3000, second[1].Price)
	assert.Equal(t, 3500, second[2].Price)
	assert.Equal(t, 4.8, second[0].Rating)
	assert.Equal(t, "Kerala Backwaters", second[1].Location)
	assert.Equal(t, "heritage_home", second[2].Type)
}
