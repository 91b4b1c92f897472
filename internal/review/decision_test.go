package review

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// loadedSongs returns a session showing songs 1..3 on page 1.
func loadedSongs(t *testing.T) *testSession {
	t.Helper()
	s := newTestSession(t, Options{})
	s.backend.On("PendingSongs", mock.Anything, 1, 20).Return(songsPage(3, 3), nil)
	require.NoError(t, s.ctrl.Search(context.Background()))
	return s
}

func TestBatchWithEmptySelection(t *testing.T) {
	s := loadedSongs(t)

	d, err := s.ctrl.BeginBatch(context.Background(), ActionApprove)
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrEmptySelection)
	assert.Equal(t, KindValidation, Classify(err))

	warnings := s.notices.byLevel(LevelWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, MsgEmptySelection, warnings[0].MessageID)
	assert.Nil(t, s.ctrl.Pending())
	s.backend.AssertNotCalled(t, "ApproveSong", mock.Anything, mock.Anything)
}

func TestApproveRow(t *testing.T) {
	ctx := context.Background()

	t.Run("CancelHasNoSideEffects", func(t *testing.T) {
		s := loadedSongs(t)

		d, err := s.ctrl.Begin(ActionApprove, 2)
		require.NoError(t, err)
		assert.Equal(t, StatePendingConfirmation, d.State)
		assert.Equal(t, []int64{2}, d.Targets)
		assert.False(t, d.Batch)

		require.NoError(t, s.ctrl.Cancel(d.ID))
		assert.Nil(t, s.ctrl.Pending())
		assert.ErrorIs(t, s.ctrl.Cancel(d.ID), ErrDecisionNotPending)

		_, err = s.ctrl.Confirm(ctx, d.ID, nil)
		assert.ErrorIs(t, err, ErrDecisionNotPending)
		s.backend.AssertNotCalled(t, "ApproveSong", mock.Anything, mock.Anything)
		s.backend.AssertNumberOfCalls(t, "PendingSongs", 1)
	})

	t.Run("ConfirmRefetchesAndKeepsSelection", func(t *testing.T) {
		s := loadedSongs(t)
		s.backend.On("ApproveSong", mock.Anything, int64(2)).Return(nil).Once()
		s.ctrl.SetSelection([]int64{1, 3})

		d, err := s.ctrl.Begin(ActionApprove, 2)
		require.NoError(t, err)

		outcome, err := s.ctrl.Confirm(ctx, d.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.Processed)
		assert.Zero(t, outcome.Failed)

		successes := s.notices.byLevel(LevelSuccess)
		require.Len(t, successes, 1)
		assert.Equal(t, MsgDecisionSucceeded, successes[0].MessageID)
		assert.Equal(t, 1, successes[0].Data["Count"])

		s.backend.AssertNumberOfCalls(t, "PendingSongs", 2)
		assert.Equal(t, []int64{1, 3}, s.ctrl.Snapshot().Selection)

		_, err = s.ctrl.Confirm(ctx, d.ID, nil)
		assert.ErrorIs(t, err, ErrDecisionNotPending)
	})

	t.Run("UnknownRow", func(t *testing.T) {
		s := loadedSongs(t)
		_, err := s.ctrl.Begin(ActionApprove, 99)
		assert.ErrorIs(t, err, ErrUnknownItem)
	})

	t.Run("NewDecisionSupersedesPending", func(t *testing.T) {
		s := loadedSongs(t)
		first, err := s.ctrl.Begin(ActionApprove, 1)
		require.NoError(t, err)
		second, err := s.ctrl.Begin(ActionReject, 2)
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
		_, err = s.ctrl.Confirm(ctx, first.ID, nil)
		assert.ErrorIs(t, err, ErrDecisionNotPending)
		assert.Equal(t, second.ID, s.ctrl.Pending().ID)
	})
}

func TestBatchApproveRunsConcurrently(t *testing.T) {
	ctx := context.Background()
	s := loadedSongs(t)
	s.ctrl.SetSelection([]int64{1, 2, 3})

	meet := newBarrier(3)
	var met int32
	s.backend.On("ApproveSong", mock.Anything, mock.AnythingOfType("int64")).
		Run(func(mock.Arguments) {
			meet.arrive()
			if meet.wait(2 * time.Second) {
				atomic.AddInt32(&met, 1)
			}
		}).
		Return(nil).Times(3)

	d, err := s.ctrl.BeginBatch(ctx, ActionApprove)
	require.NoError(t, err)
	assert.True(t, d.Batch)
	assert.ElementsMatch(t, []int64{1, 2, 3}, d.Targets)

	outcome, err := s.ctrl.Confirm(ctx, d.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Processed)
	assert.Equal(t, int32(3), atomic.LoadInt32(&met), "all three requests must be in flight together")

	successes := s.notices.byLevel(LevelSuccess)
	require.Len(t, successes, 1)
	assert.Equal(t, 3, successes[0].Data["Count"])
	assert.Empty(t, s.ctrl.Snapshot().Selection)
	s.backend.AssertNumberOfCalls(t, "PendingSongs", 2)
	s.backend.AssertExpectations(t)
}

func TestBatchApproveWithOneFailure(t *testing.T) {
	ctx := context.Background()
	s := loadedSongs(t)
	s.ctrl.SetSelection([]int64{1, 2, 3})
	s.backend.On("ApproveSong", mock.Anything, int64(1)).Return(nil).Once()
	s.backend.On("ApproveSong", mock.Anything, int64(2)).Return(errors.New("timeout")).Once()
	s.backend.On("ApproveSong", mock.Anything, int64(3)).Return(nil).Once()

	d, err := s.ctrl.BeginBatch(ctx, ActionApprove)
	require.NoError(t, err)

	outcome, err := s.ctrl.Confirm(ctx, d.ID, nil)
	require.Error(t, err)
	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 1, batchErr.Failed())
	assert.Equal(t, 3, batchErr.Total)
	assert.Equal(t, KindPartialBatch, Classify(err))
	assert.Equal(t, 2, outcome.Processed)

	failures := s.notices.byLevel(LevelError)
	require.Len(t, failures, 1)
	assert.Equal(t, MsgDecisionFailed, failures[0].MessageID)
	assert.Empty(t, s.notices.byLevel(LevelSuccess))

	assert.Equal(t, []int64{1, 2, 3}, s.ctrl.Snapshot().Selection)
	s.backend.AssertNumberOfCalls(t, "PendingSongs", 1)
}

func TestRejectReason(t *testing.T) {
	ctx := context.Background()

	t.Run("NoReasonIsOmitted", func(t *testing.T) {
		s := loadedSongs(t)
		s.backend.On("RejectSong", mock.Anything, int64(1), nilReason()).Return(nil).Once()

		d, err := s.ctrl.Begin(ActionReject, 1)
		require.NoError(t, err)
		outcome, err := s.ctrl.Confirm(ctx, d.ID, nil)
		require.NoError(t, err)
		assert.Nil(t, outcome.Reason)
		s.backend.AssertExpectations(t)
	})

	t.Run("EmptyReasonIsSent", func(t *testing.T) {
		s := loadedSongs(t)
		s.backend.On("RejectSong", mock.Anything, int64(1), reasonEq("")).Return(nil).Once()

		d, err := s.ctrl.Begin(ActionReject, 1)
		require.NoError(t, err)
		outcome, err := s.ctrl.Confirm(ctx, d.ID, strPtr(""))
		require.NoError(t, err)
		require.NotNil(t, outcome.Reason)
		assert.Equal(t, "", *outcome.Reason)
		s.backend.AssertExpectations(t)
	})

	t.Run("ReasonIsTrimmed", func(t *testing.T) {
		s := loadedSongs(t)
		s.backend.On("RejectSong", mock.Anything, int64(3), reasonEq("spam")).Return(nil).Once()

		d, err := s.ctrl.Begin(ActionReject, 3)
		require.NoError(t, err)
		_, err = s.ctrl.Confirm(ctx, d.ID, strPtr("  spam \n"))
		require.NoError(t, err)
		s.backend.AssertExpectations(t)
	})

	t.Run("LengthBoundary", func(t *testing.T) {
		s := loadedSongs(t)
		limit := strings.Repeat("雨", MaxReasonLength)
		s.backend.On("RejectSong", mock.Anything, int64(2), reasonEq(limit)).Return(nil).Once()

		d, err := s.ctrl.Begin(ActionReject, 2)
		require.NoError(t, err)

		_, err = s.ctrl.Confirm(ctx, d.ID, strPtr(limit+"x"))
		assert.ErrorIs(t, err, ErrReasonTooLong)
		assert.Equal(t, KindValidation, Classify(err))
		s.backend.AssertNotCalled(t, "RejectSong", mock.Anything, mock.Anything, mock.Anything)

		pending := s.ctrl.Pending()
		require.NotNil(t, pending, "an invalid reason keeps the prompt open")
		assert.Equal(t, d.ID, pending.ID)
		warnings := s.notices.byLevel(LevelWarning)
		require.Len(t, warnings, 1)
		assert.Equal(t, MsgReasonTooLong, warnings[0].MessageID)

		_, err = s.ctrl.Confirm(ctx, d.ID, strPtr(limit))
		require.NoError(t, err)
		s.backend.AssertExpectations(t)
	})

	t.Run("BatchRejectShareReason", func(t *testing.T) {
		s := loadedSongs(t)
		s.ctrl.SetSelection([]int64{1, 2})
		s.backend.On("RejectSong", mock.Anything, int64(1), reasonEq("dup")).Return(nil).Once()
		s.backend.On("RejectSong", mock.Anything, int64(2), reasonEq("dup")).Return(nil).Once()

		d, err := s.ctrl.BeginBatch(ctx, ActionReject)
		require.NoError(t, err)
		_, err = s.ctrl.Confirm(ctx, d.ID, strPtr("dup"))
		require.NoError(t, err)
		assert.Empty(t, s.ctrl.Snapshot().Selection)
		s.backend.AssertExpectations(t)
	})
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Approve ")
	require.NoError(t, err)
	assert.Equal(t, ActionApprove, a)

	a, err = ParseAction("reject")
	require.NoError(t, err)
	assert.Equal(t, ActionReject, a)

	_, err = ParseAction("delete")
	assert.ErrorIs(t, err, ErrValidation)
}
