package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTeaScheduler_AfterFunc(t *testing.T) {
	s := newTeaScheduler()
	fired := 0
	s.AfterFunc(time.Millisecond, func() { fired++ })

	timers, _ := s.Pending()
	require.Equal(t, 1, timers)
	require.NotNil(t, s.Drain())
	require.Nil(t, s.Drain(), "drain empties the queue")

	require.True(t, s.Handle(timerFiredMsg{id: 1}))
	require.Equal(t, 1, fired)

	// A repeated delivery is ignored.
	require.True(t, s.Handle(timerFiredMsg{id: 1}))
	require.Equal(t, 1, fired)
}

func TestTeaScheduler_StoppedTimerDoesNotFire(t *testing.T) {
	s := newTeaScheduler()
	fired := false
	timer := s.AfterFunc(time.Millisecond, func() { fired = true })

	require.True(t, timer.Stop())
	require.False(t, timer.Stop())

	require.True(t, s.Handle(timerFiredMsg{id: 1}))
	require.False(t, fired)
	timers, _ := s.Pending()
	require.Zero(t, timers)
}

func TestTeaScheduler_FramesCoalesce(t *testing.T) {
	s := newTeaScheduler()
	var order []int
	s.NextFrame(func() { order = append(order, 1) })
	s.NextFrame(func() { order = append(order, 2) })

	_, frames := s.Pending()
	require.Equal(t, 2, frames)
	require.Len(t, s.pending, 1, "one frame message per batch")

	require.True(t, s.Handle(frameMsg{}))
	require.Equal(t, []int{1, 2}, order)

	_, frames = s.Pending()
	require.Zero(t, frames)
}

func TestTeaScheduler_FrameQueuedFromFrame(t *testing.T) {
	s := newTeaScheduler()
	ran := 0
	s.NextFrame(func() {
		ran++
		s.NextFrame(func() { ran++ })
	})
	s.Drain()

	s.Handle(frameMsg{})
	require.Equal(t, 1, ran, "nested frame waits for the next render")
	require.NotNil(t, s.Drain())

	s.Handle(frameMsg{})
	require.Equal(t, 2, ran)
}

func TestTeaScheduler_IgnoresOtherMessages(t *testing.T) {
	s := newTeaScheduler()
	require.False(t, s.Handle(ShowToastMsg{Text: "x"}))
}
