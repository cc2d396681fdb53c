package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agenthands/cartographer/internal/core/model"
)

func TestNextHappyPath(t *testing.T) {
	steps := []struct {
		from  model.Phase
		event Event
		to    model.Phase
	}{
		{model.PhaseInit, EventAdvance, model.PhaseGather},
		{model.PhaseGather, EventAdvance, model.PhaseExtract},
		{model.PhaseExtract, EventAdvance, model.PhaseCritique},
		{model.PhaseCritique, EventAdvance, model.PhaseScore},
		{model.PhaseScore, EventAdvance, model.PhaseSynthesize},
		{model.PhaseSynthesize, EventAdvance, model.PhaseComplete},
	}

	for _, step := range steps {
		got, err := Next(step.from, step.event)
		assert.NoError(t, err)
		assert.Equal(t, step.to, got, "from %s", step.from)
	}
}

func TestNextCritiqueLoopsToGather(t *testing.T) {
	got, err := Next(model.PhaseCritique, EventLoop)
	assert.NoError(t, err)
	assert.Equal(t, model.PhaseGather, got)
}

func TestNextFailFromAnyActivePhase(t *testing.T) {
	for _, p := range []model.Phase{
		model.PhaseInit, model.PhaseGather, model.PhaseExtract,
		model.PhaseCritique, model.PhaseScore, model.PhaseSynthesize,
	} {
		got, err := Next(p, EventFail)
		assert.NoError(t, err)
		assert.Equal(t, model.PhaseFailed, got, "from %s", p)
	}
}

func TestNextRejectsInvalidTransitions(t *testing.T) {
	_, err := Next(model.PhaseGather, EventLoop)
	assert.Error(t, err)

	_, err = Next(model.PhaseComplete, EventAdvance)
	assert.Error(t, err)

	_, err = Next(model.PhaseFailed, EventFail)
	assert.Error(t, err)
}
