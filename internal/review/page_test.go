package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"reviewdesk/internal/auditapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestQueuePageFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("SongsFirstPage", func(t *testing.T) {
		s := newTestSession(t, Options{})
		s.backend.On("PendingSongs", mock.Anything, 1, 20).Return(songsPage(20, 45), nil).Once()

		require.NoError(t, s.ctrl.Search(ctx))

		state := s.ctrl.Snapshot().Page
		assert.Equal(t, int64(45), state.Total)
		assert.Len(t, state.Items, 20)
		assert.True(t, state.Loading, "loading stays set until the settle delay passes")

		s.clock.Add(DefaultSettleDelay)
		assert.Eventually(t, func() bool { return !s.ctrl.Snapshot().Page.Loading }, time.Second, 5*time.Millisecond)
		s.backend.AssertExpectations(t)
	})

	t.Run("TruncatesToPageSize", func(t *testing.T) {
		s := newTestSession(t, Options{PageSize: 10})
		s.backend.On("PendingSongs", mock.Anything, 1, 10).Return(songsPage(15, 15), nil).Once()

		require.NoError(t, s.ctrl.Search(ctx))
		state := s.ctrl.Snapshot().Page
		assert.Len(t, state.Items, 10)
		assert.Equal(t, int64(15), state.Total)
	})

	t.Run("ServerRejectionClearsPage", func(t *testing.T) {
		s := newTestSession(t, Options{})
		s.backend.On("PendingSongs", mock.Anything, 1, 20).Return(songsPage(5, 5), nil).Once()
		s.backend.On("PendingSongs", mock.Anything, 1, 20).Return(nil, &auditapi.ServerError{Code: 1, Message: "no permission"}).Once()

		require.NoError(t, s.ctrl.Search(ctx))
		require.Len(t, s.ctrl.Snapshot().Page.Items, 5)

		err := s.ctrl.Search(ctx)
		require.Error(t, err)
		assert.Equal(t, KindServerRejection, Classify(err))

		state := s.ctrl.Snapshot().Page
		assert.Empty(t, state.Items)
		assert.Zero(t, state.Total)

		errorsSeen := s.notices.byLevel(LevelError)
		require.Len(t, errorsSeen, 1)
		assert.Equal(t, MsgListFailed, errorsSeen[0].MessageID)
		assert.Equal(t, "no permission", errorsSeen[0].Data["Message"])

		s.clock.Add(DefaultSettleDelay)
		assert.Eventually(t, func() bool { return !s.ctrl.Snapshot().Page.Loading }, time.Second, 5*time.Millisecond)
	})

	t.Run("TransportFailure", func(t *testing.T) {
		s := newTestSession(t, Options{})
		s.backend.On("PendingSongs", mock.Anything, 1, 20).Return(nil, errors.New("dial tcp: connection refused")).Once()

		err := s.ctrl.Search(ctx)
		assert.Equal(t, KindTransport, Classify(err))
		assert.Empty(t, s.ctrl.Snapshot().Page.Items)
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		s := newTestSession(t, Options{})
		s.backend.On("PendingSongs", mock.Anything, 1, 20).Return(&auditapi.Page[auditapi.SongItem]{}, nil).Once()

		require.NoError(t, s.ctrl.Search(ctx))
		state := s.ctrl.Snapshot().Page
		assert.Empty(t, state.Items)
		assert.Zero(t, state.Total)
	})
}

func TestQueuePageDropsStaleResponses(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, Options{})

	started := make(chan struct{})
	release := make(chan struct{})
	s.backend.On("PendingSongs", mock.Anything, 1, 20).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(songsPage(1, 1), nil).Once()
	s.backend.On("PendingSongs", mock.Anything, 2, 20).Return(songsPage(3, 43), nil).Once()

	slowDone := make(chan error, 1)
	go func() { slowDone <- s.ctrl.Search(ctx) }()
	<-started

	require.NoError(t, s.ctrl.SetPage(ctx, 2))
	close(release)
	require.NoError(t, <-slowDone)

	state := s.ctrl.Snapshot().Page
	assert.Equal(t, 2, state.PageNum)
	assert.Len(t, state.Items, 3)
	assert.Equal(t, int64(43), state.Total)
}

func TestQueuePagePaging(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, Options{})
	s.backend.On("PendingSongs", mock.Anything, 3, 20).Return(songsPage(2, 42), nil).Once()
	s.backend.On("PendingSongs", mock.Anything, 3, 50).Return(songsPage(0, 42), nil).Once()

	require.NoError(t, s.ctrl.SetPage(ctx, 3))
	require.NoError(t, s.ctrl.SetPageSize(ctx, 50))

	state := s.ctrl.Snapshot().Page
	assert.Equal(t, 3, state.PageNum)
	assert.Equal(t, 50, state.PageSize)

	assert.ErrorIs(t, s.ctrl.SetPage(ctx, 0), ErrInvalidPage)
	assert.ErrorIs(t, s.ctrl.SetPageSize(ctx, -1), ErrInvalidPage)
	s.backend.AssertExpectations(t)
}

func TestControllerCloseDropsInFlightFetch(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, Options{})

	started := make(chan struct{})
	release := make(chan struct{})
	s.backend.On("PendingSongs", mock.Anything, 1, 20).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(songsPage(4, 4), nil).Once()

	done := make(chan error, 1)
	go func() { done <- s.ctrl.Search(ctx) }()
	<-started

	s.ctrl.Close()
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, s.ctrl.Snapshot().Page.Items)
	assert.ErrorIs(t, s.ctrl.Search(ctx), ErrClosed)
}
