package sla_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/concierge-engine/sla"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func housekeeping() sla.Policy {
	return sla.Policy{Category: "housekeeping", TargetResponseMinutes: 15, TargetCompletionMinutes: 60}
}

func TestRecordResponse_OnTime(t *testing.T) {
	// GIVEN: A housekeeping booking (15 min response target)
	// WHEN: The provider responds after 10 minutes
	// THEN: Response is on time with no delay recorded

	b := sla.NewBlock(housekeeping())
	b.RecordResponse(t0, t0.Add(10*time.Minute))

	require.NotNil(t, b.ActualResponseMinutes)
	assert.EqualValues(t, 10, *b.ActualResponseMinutes)
	require.NotNil(t, b.ResponseOnTime)
	assert.True(t, *b.ResponseOnTime)
	assert.EqualValues(t, 0, b.ResponseDelayMinutes)
}

func TestRecordResponse_Late(t *testing.T) {
	b := sla.NewBlock(housekeeping())
	b.RecordResponse(t0, t0.Add(25*time.Minute))

	require.NotNil(t, b.ResponseOnTime)
	assert.False(t, *b.ResponseOnTime)
	assert.EqualValues(t, 10, b.ResponseDelayMinutes)
}

func TestRecordResponse_Idempotent(t *testing.T) {
	// GIVEN: A response recorded at 10 minutes
	// WHEN: A duplicate event arrives at 40 minutes
	// THEN: The first recorded value stands

	b := sla.NewBlock(housekeeping())
	b.RecordResponse(t0, t0.Add(10*time.Minute))
	b.RecordResponse(t0, t0.Add(40*time.Minute))

	assert.EqualValues(t, 10, *b.ActualResponseMinutes)
	assert.True(t, *b.ResponseOnTime)
}

func TestRecordCompletion_SettlesStatus(t *testing.T) {
	// GIVEN: On-time response
	// WHEN: Completion lands within target
	// THEN: Overall status settles to met

	b := sla.NewBlock(housekeeping())
	b.RecordResponse(t0, t0.Add(5*time.Minute))
	b.RecordCompletion(t0, t0.Add(50*time.Minute))

	assert.Equal(t, sla.StatusMet, b.Status)
	require.NotNil(t, b.CompletionOnTime)
	assert.True(t, *b.CompletionOnTime)
}

func TestRecordCompletion_LateResponseMissesOverall(t *testing.T) {
	// A late response makes the overall status missed even when the
	// completion itself was on time.
	b := sla.NewBlock(housekeeping())
	b.RecordResponse(t0, t0.Add(30*time.Minute))
	b.RecordCompletion(t0, t0.Add(45*time.Minute))

	assert.Equal(t, sla.StatusMissed, b.Status)
	assert.True(t, *b.CompletionOnTime)
}

func TestRecordCompletion_Idempotent(t *testing.T) {
	// GIVEN: A completion recorded on time
	// WHEN: The event is redelivered much later
	// THEN: No-op, not an error; status stays met

	b := sla.NewBlock(housekeeping())
	b.RecordCompletion(t0, t0.Add(30*time.Minute))
	first := *b.ActualCompletionMinutes

	b.RecordCompletion(t0, t0.Add(5*time.Hour))

	assert.EqualValues(t, first, *b.ActualCompletionMinutes)
	assert.Equal(t, sla.StatusMet, b.Status)
}

func TestRecordCompletion_NoResponseRecorded(t *testing.T) {
	// Some categories never record a distinct response; only the
	// completion target decides the status then.
	b := sla.NewBlock(housekeeping())
	b.RecordCompletion(t0, t0.Add(55*time.Minute))
	assert.Equal(t, sla.StatusMet, b.Status)
}

func TestEvaluate_AtRiskIsDerivedNotStored(t *testing.T) {
	// GIVEN: An open booking past its response target
	// WHEN: Evaluated
	// THEN: at_risk is reported but nothing is written to the block

	b := sla.NewBlock(housekeeping())

	got := b.Evaluate(t0, t0.Add(20*time.Minute))
	assert.Equal(t, sla.StatusAtRisk, got)
	assert.Equal(t, sla.StatusUnset, b.Status, "at_risk must never be persisted")
}

func TestEvaluate_OpenAndWithinTargets(t *testing.T) {
	b := sla.NewBlock(housekeeping())
	assert.Equal(t, sla.StatusUnset, b.Evaluate(t0, t0.Add(5*time.Minute)))
}

func TestEvaluate_SettledStatusWins(t *testing.T) {
	// Once completion settles the status, Evaluate passes it through
	// regardless of elapsed time.
	b := sla.NewBlock(housekeeping())
	b.RecordCompletion(t0, t0.Add(90*time.Minute))
	assert.Equal(t, sla.StatusMissed, b.Evaluate(t0, t0.Add(48*time.Hour)))
}

func TestEvaluate_RespondedButCompletionPastTarget(t *testing.T) {
	// Responded on time, still open, past the completion target.
	b := sla.NewBlock(housekeeping())
	b.RecordResponse(t0, t0.Add(5*time.Minute))
	assert.Equal(t, sla.StatusAtRisk, b.Evaluate(t0, t0.Add(70*time.Minute)))
}

func TestZeroTargetDisablesDimension(t *testing.T) {
	// A zero target means the dimension is not tracked: never late,
	// never at risk on that clock.
	b := sla.NewBlock(sla.Policy{Category: "custom", TargetResponseMinutes: 0, TargetCompletionMinutes: 60})
	assert.Equal(t, sla.StatusUnset, b.Evaluate(t0, t0.Add(45*time.Minute)))

	b.RecordResponse(t0, t0.Add(10*time.Hour))
	assert.True(t, *b.ResponseOnTime)
}

func TestPolicyTable_Fallback(t *testing.T) {
	table := sla.DefaultTable()

	p := table.For("dining")
	assert.EqualValues(t, 10, p.TargetResponseMinutes)

	// Unknown categories get the fallback with their own name.
	q := table.For("pet-grooming")
	assert.Equal(t, "pet-grooming", q.Category)
	assert.EqualValues(t, 30, q.TargetResponseMinutes)
	assert.EqualValues(t, 240, q.TargetCompletionMinutes)
}
