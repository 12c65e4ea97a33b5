package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)
	loss := 0.15
	worse := 0.4

	published := Next(nil, Update{CycleID: "c1", Phase: PhasePublished, Attempts: 2, Loss: &loss, At: t0})
	assert.Equal(t, &TrainingStatus{
		Phase: PhasePublished, LastCycleID: "c1", LastAttempt: &t0,
		Attempts: 2, LastLoss: &loss, LastPublished: &t0,
	}, published)

	t.Run("idle keeps session figures", func(t *testing.T) {
		t.Parallel()
		idle := Next(published, Update{CycleID: "c2", Phase: PhaseIdle, At: t1})
		assert.Equal(t, PhaseIdle, idle.Phase)
		assert.Equal(t, 2, idle.Attempts)
		assert.Equal(t, &loss, idle.LastLoss)
		assert.Equal(t, &t0, idle.LastPublished)
		assert.Equal(t, &t1, idle.LastAttempt)
	})

	t.Run("failures accumulate until a session completes", func(t *testing.T) {
		t.Parallel()
		s := Next(published, Update{Phase: PhaseFailed, Message: "download", At: t1})
		s = Next(s, Update{Phase: PhaseFailed, Message: "conversion", At: t1})
		assert.Equal(t, 2, s.ConsecutiveFailures)
		assert.Equal(t, "conversion", s.Message)

		s = Next(s, Update{Phase: PhaseRolledBack, Attempts: 9, Loss: &worse, At: t1})
		assert.Zero(t, s.ConsecutiveFailures)
		assert.Equal(t, 9, s.Attempts)
		assert.Equal(t, &worse, s.LastLoss)
		assert.Equal(t, &t0, s.LastPublished, "rollback keeps the last publish time")
	})

	assert.Equal(t, PhasePublished, published.Phase, "Next does not modify prev")
}
