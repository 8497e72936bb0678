package runner_test

import (
	"testing"
	"time"

	"github.com/lethanhtung0208/stock/internal/application/runner"
	"github.com/stretchr/testify/assert"
)

func TestDefaultSession(t *testing.T) {
	s := runner.DefaultSession()
	assert.NoError(t, s.Validate())

	assert.Equal(t, day.Add(9*time.Hour+4*time.Second), s.Start(day))
	assert.Equal(t, day.Add(14*time.Hour+54*time.Minute+4*time.Second), s.End(day))
	assert.Equal(t, 2656, s.Ticks())
}

func TestSession_Blackout(t *testing.T) {
	s := runner.DefaultSession()
	at := func(h, m, sec int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second) }

	assert.False(t, s.InBlackout(at(11, 29, 59)))
	assert.True(t, s.InBlackout(at(11, 30, 0)))
	assert.True(t, s.InBlackout(at(12, 30, 59)))
	assert.False(t, s.InBlackout(at(12, 31, 0)))
}

func TestSession_EntryCutoff(t *testing.T) {
	s := runner.DefaultSession()
	assert.True(t, s.EntriesAllowed(day.Add(9*time.Hour+59*time.Minute)))
	assert.False(t, s.EntriesAllowed(day.Add(10*time.Hour)))
}

func TestSession_Validate(t *testing.T) {
	s := runner.DefaultSession()
	s.Step = 0
	assert.Error(t, s.Validate())

	s = runner.DefaultSession()
	s.Close = s.Open - time.Second
	assert.Error(t, s.Validate())

	s = runner.DefaultSession()
	s.BlackoutMode = "pause"
	assert.Error(t, s.Validate())
}
