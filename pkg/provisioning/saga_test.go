package provisioning_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Abraxas-365/provisioning/pkg/provisioning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trace struct{ events []string }

func (tr *trace) step(name string, err error) func(context.Context) error {
	return func(context.Context) error {
		tr.events = append(tr.events, name)
		return err
	}
}

func TestSaga_RunsStepsInOrder(t *testing.T) {
	tr := &trace{}
	err := provisioning.NewSaga("s").
		Step("a", tr.step("a", nil), tr.step("undo-a", nil)).
		Step("b", tr.step("b", nil), tr.step("undo-b", nil)).
		Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tr.events)
}

func TestSaga_UnwindsCompletedStepsInReverse(t *testing.T) {
	tr := &trace{}
	boom := errors.New("boom")
	err := provisioning.NewSaga("s").
		Step("a", tr.step("a", nil), tr.step("undo-a", nil)).
		Step("b", tr.step("b", nil), nil).
		Step("c", tr.step("c", nil), tr.step("undo-c", nil)).
		Step("d", tr.step("d", boom), tr.step("undo-d", nil)).
		Run(context.Background())

	var f *provisioning.Failure
	require.ErrorAs(t, err, &f)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "d", f.Step)
	assert.True(t, f.Clean())
	assert.Equal(t, []string{"c", "a"}, f.Compensated)
	assert.Equal(t, []string{"a", "b", "c", "d", "undo-c", "undo-a"}, tr.events)
}

func TestSaga_KeepsUnwindingPastFailedCompensation(t *testing.T) {
	tr := &trace{}
	stuck := errors.New("stuck")
	err := provisioning.NewSaga("s").
		Step("a", tr.step("a", nil), tr.step("undo-a", nil)).
		Step("b", tr.step("b", nil), tr.step("undo-b", stuck)).
		Step("c", tr.step("c", errors.New("boom")), nil).
		Run(context.Background())

	var f *provisioning.Failure
	require.ErrorAs(t, err, &f)
	assert.False(t, f.Clean())
	require.Len(t, f.CompensationErrors, 1)
	assert.Equal(t, "b", f.CompensationErrors[0].Step)
	assert.ErrorIs(t, f.CompensationErrors[0].Err, stuck)
	assert.Equal(t, []string{"a"}, f.Compensated)
	assert.Contains(t, f.Error(), "compensation failed")
}

func TestSaga_FirstStepFailureHasNothingToUndo(t *testing.T) {
	tr := &trace{}
	err := provisioning.NewSaga("s").
		Step("a", tr.step("a", errors.New("no")), tr.step("undo-a", nil)).
		Run(context.Background())

	var f *provisioning.Failure
	require.ErrorAs(t, err, &f)
	assert.Empty(t, f.Compensated)
	assert.Equal(t, []string{"a"}, tr.events)
}
