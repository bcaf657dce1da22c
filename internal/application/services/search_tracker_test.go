package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/obstetric-locator/internal/application/services"
	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
)

// MockSearchEventRepository is a testify mock of repositories.SearchEventRepository.
type MockSearchEventRepository struct {
	mock.Mock
}

func (m *MockSearchEventRepository) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	return m.Called(ctx, event).Error(0)
}

func TestSearchTracker_TrackSearch(t *testing.T) {
	repo := new(MockSearchEventRepository)
	event := &entities.SearchEvent{RadiusRequested: 25, RadiusUsed: 50, Expanded: true}
	repo.On("LogEvent", mock.Anything, event).Return(nil).Once()

	tracker := services.NewSearchTracker(repo, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	tracker.TrackSearch(ctx, event)
	// the write must survive the end of the request
	cancel()
	tracker.Wait()

	repo.AssertExpectations(t)
}

func TestSearchTracker_FailureIsSwallowed(t *testing.T) {
	repo := new(MockSearchEventRepository)
	repo.On("LogEvent", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	tracker := services.NewSearchTracker(repo, zerolog.Nop())
	assert.NotPanics(t, func() {
		tracker.TrackSearch(context.Background(), &entities.SearchEvent{})
		tracker.Wait()
	})
	repo.AssertNumberOfCalls(t, "LogEvent", 1)
}

func TestSearchTracker_Disabled(t *testing.T) {
	var nilTracker *services.SearchTracker
	assert.NotPanics(t, func() {
		nilTracker.TrackSearch(context.Background(), &entities.SearchEvent{})
		nilTracker.Wait()
	})

	tracker := services.NewSearchTracker(nil, zerolog.Nop())
	tracker.TrackSearch(context.Background(), &entities.SearchEvent{})
	tracker.Wait()
}
