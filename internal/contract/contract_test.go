package contract_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avow-dev/avow/internal/contract"
	"github.com/avow-dev/avow/internal/jsonval"
	"github.com/avow-dev/avow/internal/observe"
	"github.com/avow-dev/avow/internal/pred"
	"github.com/avow-dev/avow/internal/testutil"
)

func obsOf(objects ...jsonval.Value) *observe.Observation {
	return &observe.Observation{Objects: objects}
}

func serverNamed(name string) jsonval.Value {
	return jsonval.Obj{"name": jsonval.Str(name), "status": jsonval.Str("ACTIVE")}
}

func TestClauseBuilder_RequiresObserver(t *testing.T) {
	_, err := contract.NewClause("server exists").
		Predicate(pred.Equals{Want: jsonval.Str("x")}).
		Build()
	require.Error(t, err)

	be, ok := contract.IsBuildError(err)
	require.True(t, ok)
	assert.Equal(t, contract.ErrCodeMissingObserver, be.Code)
	assert.Contains(t, err.Error(), "server exists")
}

func TestClauseBuilder_RequiresPredicate(t *testing.T) {
	_, err := contract.NewClause("server exists").
		Observer(testutil.NewScriptedObserver(obsOf())).
		Build()
	require.Error(t, err)

	be, ok := contract.IsBuildError(err)
	require.True(t, ok)
	assert.Equal(t, contract.ErrCodeMissingPredicate, be.Code)
}

func TestClauseBuilder_RejectsReboundObserver(t *testing.T) {
	obs := testutil.NewScriptedObserver(obsOf())
	_, err := contract.NewClause("dup").
		Observer(obs).
		Observer(obs).
		Predicate(pred.Equals{Want: jsonval.Null{}}).
		Build()
	require.Error(t, err)

	be, ok := contract.IsBuildError(err)
	require.True(t, ok)
	assert.Equal(t, contract.ErrCodeObserverRebound, be.Code)
}

func TestClauseBuilder_BadPathSurfacesAtBuild(t *testing.T) {
	_, err := contract.NewClause("bad path").
		Observer(testutil.NewScriptedObserver(obsOf())).
		ExpectValueAt("a[oops]", jsonval.Str("x")).
		Build()
	require.Error(t, err)
	assert.True(t, pred.IsConfigError(err), "path errors keep their predicate error type")
}

func TestContractBuilder_FirstErrorWins(t *testing.T) {
	b := contract.NewBuilder()
	b.NewClause("ok").
		Observer(testutil.NewScriptedObserver(obsOf())).
		Predicate(pred.Equals{Want: jsonval.Null{}})
	b.NewClause("broken").
		Observer(testutil.NewScriptedObserver(obsOf()))

	_, err := b.Build()
	require.Error(t, err)
	be, ok := contract.IsBuildError(err)
	require.True(t, ok)
	assert.Equal(t, "broken", be.Clause)
}

func TestClause_SingleAttemptWithoutRetryWindow(t *testing.T) {
	observer := testutil.NewScriptedObserver(obsOf())
	clause, err := contract.NewClause("no retry").
		Observer(observer).
		ExpectValueAt("name", jsonval.Str("foo")).
		Build()
	require.NoError(t, err)

	clk := testutil.NewVirtualClock()
	result := clause.Verify(context.Background(), clk, nil)

	assert.Equal(t, contract.OutcomeUnsatisfied, result.Outcome)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, observer.Calls())
	assert.Zero(t, clk.SleepCount())
}

func TestClause_RetriesUntilObjectAppears(t *testing.T) {
	// The object converges on the third observation; the clause keeps
	// re-observing every window/10 until then.
	observer := testutil.NewScriptedObserver(
		obsOf(),
		obsOf(serverNamed("other")),
		obsOf(serverNamed("other"), serverNamed("foo")),
	)
	clause, err := contract.NewClause("server foo appears").
		Observer(observer).
		ExpectValueAt("name", jsonval.Str("foo")).
		RetryWindow(30 * time.Second).
		Build()
	require.NoError(t, err)

	clk := testutil.NewVirtualClock()
	result := clause.Verify(context.Background(), clk, nil)

	assert.Equal(t, contract.OutcomeSatisfied, result.Outcome)
	assert.True(t, result.Satisfied())
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, clk.Sleeps())
	assert.Equal(t, 6*time.Second, result.Elapsed)

	require.NotNil(t, result.Result)
	assert.True(t, result.Result.Verified)
	// One child per observed object on the final attempt.
	assert.Len(t, result.Result.Children, 2)
}

func TestClause_UnsatisfiedAfterWindowExpires(t *testing.T) {
	observer := testutil.NewScriptedObserver(obsOf(serverNamed("other")))
	clause, err := contract.NewClause("never converges").
		Observer(observer).
		ExpectValueAt("name", jsonval.Str("foo")).
		RetryWindow(2 * time.Second).
		PollInterval(time.Second).
		Build()
	require.NoError(t, err)

	clk := testutil.NewVirtualClock()
	result := clause.Verify(context.Background(), clk, nil)

	assert.Equal(t, contract.OutcomeUnsatisfied, result.Outcome)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clk.Sleeps())
	assert.Equal(t, 2*time.Second, result.Elapsed)
}

func TestClause_SleepIntervalClampedToWindow(t *testing.T) {
	// A 2s window derives a 1s floor interval, not 200ms.
	observer := testutil.NewScriptedObserver(obsOf())
	clause, err := contract.NewClause("short window").
		Observer(observer).
		ExpectValueAt("name", jsonval.Str("foo")).
		RetryWindow(2 * time.Second).
		Build()
	require.NoError(t, err)

	clk := testutil.NewVirtualClock()
	clause.Verify(context.Background(), clk, nil)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clk.Sleeps())

	// A 10 minute window caps at the 5s ceiling.
	observer2 := testutil.NewScriptedObserver(obsOf(), obsOf(serverNamed("foo")))
	clause2, err := contract.NewClause("long window").
		Observer(observer2).
		ExpectValueAt("name", jsonval.Str("foo")).
		RetryWindow(10 * time.Minute).
		Build()
	require.NoError(t, err)

	clk2 := testutil.NewVirtualClock()
	clause2.Verify(context.Background(), clk2, nil)
	assert.Equal(t, []time.Duration{5 * time.Second}, clk2.Sleeps())
}

func TestClause_TransientObservationErrorsAreRetried(t *testing.T) {
	observer := testutil.NewScriptedObserver(
		&observe.Observation{Errors: []observe.Error{{Message: "resource not found"}}},
		obsOf(serverNamed("foo")),
	)
	clause, err := contract.NewClause("eventually observable").
		Observer(observer).
		ExpectValueAt("name", jsonval.Str("foo")).
		RetryWindow(10 * time.Second).
		Build()
	require.NoError(t, err)

	clk := testutil.NewVirtualClock()
	result := clause.Verify(context.Background(), clk, nil)

	assert.Equal(t, contract.OutcomeSatisfied, result.Outcome)
	assert.Equal(t, 2, result.Attempts)
	// Errors from earlier attempts survive in the final report.
	assert.Equal(t, []string{"resource not found"}, result.ObservationErrors)
}

func TestClause_FatalObservationErrorAborts(t *testing.T) {
	observer := testutil.NewScriptedObserver(
		&observe.Observation{Errors: []observe.Error{
			{Message: "credentials rejected", Fatal: true},
		}},
	)
	clause, err := contract.NewClause("aborts").
		Observer(observer).
		ExpectValueAt("name", jsonval.Str("foo")).
		RetryWindow(time.Minute).
		Build()
	require.NoError(t, err)

	clk := testutil.NewVirtualClock()
	result := clause.Verify(context.Background(), clk, nil)

	assert.Equal(t, contract.OutcomeAborted, result.Outcome)
	assert.False(t, result.Satisfied())
	assert.Equal(t, 1, result.Attempts)
	assert.Zero(t, clk.SleepCount(), "fatal errors must not burn the retry window")
}

func TestClause_CancellationDuringRetry(t *testing.T) {
	observer := testutil.NewScriptedObserver(obsOf())
	clause, err := contract.NewClause("canceled").
		Observer(observer).
		ExpectValueAt("name", jsonval.Str("foo")).
		RetryWindow(time.Minute).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := clause.Verify(ctx, testutil.NewVirtualClock(), nil)
	assert.Equal(t, contract.OutcomeCanceled, result.Outcome)
	assert.Equal(t, 1, result.Attempts)
}

func TestClause_MatchWholeObservation(t *testing.T) {
	observer := testutil.NewScriptedObserver(obsOf(
		serverNamed("a"),
		serverNamed("b"),
	))
	// Predicate over the collection itself: it must contain an object
	// with name "b".
	clause, err := contract.NewClause("collection check").
		Observer(observer).
		Predicate(pred.ListContains{Elem: pred.AtPath{
			Path: pred.MustCompile("name"),
			Pred: pred.Equals{Want: jsonval.Str("b")},
		}}).
		MatchWholeObservation().
		Build()
	require.NoError(t, err)

	result := clause.Verify(context.Background(), testutil.NewVirtualClock(), nil)
	assert.Equal(t, contract.OutcomeSatisfied, result.Outcome)
}

func TestClause_EmptyObservationIsMissNotError(t *testing.T) {
	observer := testutil.NewScriptedObserver(obsOf())
	clause, err := contract.NewClause("empty").
		Observer(observer).
		ExpectValueAt("name", jsonval.Str("foo")).
		Build()
	require.NoError(t, err)

	result := clause.Verify(context.Background(), testutil.NewVirtualClock(), nil)
	assert.Equal(t, contract.OutcomeUnsatisfied, result.Outcome)
	require.NotNil(t, result.Result)
	assert.Contains(t, result.Result.Comment, "no objects observed")
}

func TestContract_RunsEveryClause(t *testing.T) {
	failing := testutil.NewScriptedObserver(obsOf())
	passing := testutil.NewScriptedObserver(obsOf(serverNamed("foo")))

	b := contract.NewBuilder()
	b.NewClause("first fails").
		Observer(failing).
		ExpectValueAt("name", jsonval.Str("foo"))
	b.NewClause("second passes").
		Observer(passing).
		ExpectValueAt("name", jsonval.Str("foo"))
	c, err := b.Build()
	require.NoError(t, err)

	result := c.Verify(context.Background(), testutil.NewVirtualClock(), nil)

	assert.False(t, result.Verified)
	require.Len(t, result.ClauseResults, 2)
	assert.Equal(t, contract.OutcomeUnsatisfied, result.ClauseResults[0].Outcome)
	assert.Equal(t, contract.OutcomeSatisfied, result.ClauseResults[1].Outcome)
	assert.Equal(t, 1, passing.Calls(), "later clauses still run after a failure")
}

func TestContract_OptionalClauseNeverFailsContract(t *testing.T) {
	required := testutil.NewScriptedObserver(obsOf(serverNamed("foo")))
	flaky := testutil.NewScriptedObserver(obsOf())

	b := contract.NewBuilder()
	b.NewClause("required").
		Observer(required).
		ExpectValueAt("name", jsonval.Str("foo"))
	b.NewClause("advisory").
		Observer(flaky).
		ExpectValueAt("name", jsonval.Str("bar")).
		Optional()
	c, err := b.Build()
	require.NoError(t, err)

	result := c.Verify(context.Background(), testutil.NewVirtualClock(), nil)

	assert.True(t, result.Verified, "optional misses must not fail the contract")
	require.Len(t, result.ClauseResults, 2)
	assert.True(t, result.ClauseResults[1].Optional)
	assert.False(t, result.ClauseResults[1].Satisfied())
}

func TestContract_EmptyContractIsVerified(t *testing.T) {
	c, err := contract.NewBuilder().Build()
	require.NoError(t, err)
	result := c.Verify(context.Background(), testutil.NewVirtualClock(), nil)
	assert.True(t, result.Verified)
	assert.Empty(t, result.ClauseResults)
}

func TestContractResult_Snapshot(t *testing.T) {
	observer := testutil.NewScriptedObserver(obsOf(serverNamed("foo")))
	b := contract.NewBuilder()
	b.NewClause("server exists").
		Observer(observer).
		ExpectValueAt("name", jsonval.Str("foo"))
	c, err := b.Build()
	require.NoError(t, err)

	result := c.Verify(context.Background(), testutil.NewVirtualClock(), nil)
	snap, ok := result.Snapshot().(jsonval.Obj)
	require.True(t, ok)
	assert.Equal(t, jsonval.Bool(true), snap["verified"])

	clauses, ok := snap["clauses"].(jsonval.Arr)
	require.True(t, ok)
	require.Len(t, clauses, 1)
	clauseObj, ok := clauses[0].(jsonval.Obj)
	require.True(t, ok)
	assert.Equal(t, jsonval.Str("server exists"), clauseObj["title"])
	assert.Equal(t, jsonval.Str("SATISFIED"), clauseObj["outcome"])
}
