package autopilot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"webforge-ai-api/internal/domain/entity"
	apperrors "webforge-ai-api/pkg/errors"
)

func TestMain(m *testing.M) {
	// genai 的依赖在 init 中启动 opencensus 统计 worker
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fixedCritic 依次返回预设分数，用完后重复最后一个
type fixedCritic struct {
	mu     sync.Mutex
	scores []entity.QualityScore
	err    error
	calls  atomic.Int32
	// gate 非空时每次评审都等待放行
	gate chan struct{}
}

func (c *fixedCritic) Score(ctx context.Context, _ string) (entity.QualityScore, error) {
	n := int(c.calls.Add(1)) - 1
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return entity.QualityScore{}, ctx.Err()
		}
	}
	if c.err != nil {
		return entity.QualityScore{}, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n >= len(c.scores) {
		n = len(c.scores) - 1
	}
	return c.scores[n], nil
}

type countingCorrector struct {
	calls atomic.Int32
	err   error
}

func (c *countingCorrector) Correct(_ context.Context, code, improvement string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.calls.Add(1)
	return code + "\n<!-- " + improvement + " -->", nil
}

func uniformScore(v int, improvement string) entity.QualityScore {
	s := entity.QualityScore{
		Performance:       v,
		Accessibility:     v,
		Responsiveness:    v,
		CodeQuality:       v,
		UserExperience:    v,
		ImprovementPrompt: improvement,
	}
	s.Normalize(DefaultThreshold)
	return s
}

func TestBudgetStopsAfterExactlyMaxCorrections(t *testing.T) {
	critic := &fixedCritic{scores: []entity.QualityScore{uniformScore(50, "add aria labels")}}
	corrector := &countingCorrector{}
	s := NewSession("s1", critic, corrector, Options{MaxIterations: 3, AutoApply: true})

	res, started := s.Run(context.Background(), "<html></html>", nil)
	require.True(t, started)

	assert.Equal(t, entity.AutopilotAborted, res.State)
	assert.Equal(t, entity.AbortBudget, res.Reason)
	assert.Equal(t, 3, res.Iterations)
	assert.EqualValues(t, 3, corrector.calls.Load())
	assert.EqualValues(t, 3, critic.calls.Load())
	assert.Len(t, res.Scores, 3)
	assert.Contains(t, res.Code, "add aria labels")
}

func TestConvergesWhenScorePasses(t *testing.T) {
	critic := &fixedCritic{scores: []entity.QualityScore{
		uniformScore(60, "tighten layout"),
		uniformScore(95, ""),
	}}
	corrector := &countingCorrector{}
	s := NewSession("s1", critic, corrector, Options{AutoApply: true})

	var events []Event
	res, started := s.Run(context.Background(), "v0", func(e Event) { events = append(events, e) })
	require.True(t, started)

	assert.Equal(t, entity.AutopilotConverged, res.State)
	assert.Equal(t, entity.AbortNone, res.Reason)
	assert.Equal(t, 1, res.Iterations)
	assert.EqualValues(t, 1, corrector.calls.Load())

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventDone, last.Type)
	assert.Equal(t, entity.AutopilotConverged, last.State)

	snap := s.Snapshot()
	assert.Equal(t, entity.AutopilotConverged, snap.State)
	assert.Len(t, snap.History, 2)
}

func TestInconsistentReportedTotalDoesNotConverge(t *testing.T) {
	reported := 99
	score := entity.QualityScore{
		Performance: 40, Accessibility: 40, Responsiveness: 40, CodeQuality: 40, UserExperience: 40,
		ReportedTotal:     &reported,
		ImprovementPrompt: "more contrast",
	}
	score.Normalize(DefaultThreshold)
	require.Equal(t, 40, score.TotalScore)

	s := NewSession("s1", &fixedCritic{scores: []entity.QualityScore{score}}, &countingCorrector{}, Options{MaxIterations: 1, AutoApply: true})
	res, _ := s.Run(context.Background(), "x", nil)
	assert.NotEqual(t, entity.AutopilotConverged, res.State)
}

func TestNotAppliedWithoutAutoApply(t *testing.T) {
	corrector := &countingCorrector{}
	s := NewSession("s1", &fixedCritic{scores: []entity.QualityScore{uniformScore(50, "fix")}}, corrector, Options{})

	res, _ := s.Run(context.Background(), "x", nil)
	assert.Equal(t, entity.AbortNotApplied, res.Reason)
	assert.Zero(t, corrector.calls.Load())
}

func TestNotAppliedWithoutImprovementPrompt(t *testing.T) {
	s := NewSession("s1", &fixedCritic{scores: []entity.QualityScore{uniformScore(50, "")}}, &countingCorrector{}, Options{AutoApply: true})

	res, _ := s.Run(context.Background(), "x", nil)
	assert.Equal(t, entity.AbortNotApplied, res.Reason)
}

func TestScoringErrorAbortsWithWarning(t *testing.T) {
	critic := &fixedCritic{err: apperrors.ErrScoringParse.WithDetail("critique response is missing performance")}
	s := NewSession("s1", critic, &countingCorrector{}, Options{AutoApply: true})

	var warnings []Event
	res, _ := s.Run(context.Background(), "x", func(e Event) {
		if e.Type == EventWarning {
			warnings = append(warnings, e)
		}
	})

	assert.Equal(t, entity.AbortScoringError, res.Reason)
	assert.True(t, errors.Is(res.Err, apperrors.ErrScoringParse))
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "missing performance")
	assert.NotEmpty(t, s.Snapshot().LastError)
}

func TestGenerationErrorAborts(t *testing.T) {
	s := NewSession("s1",
		&fixedCritic{scores: []entity.QualityScore{uniformScore(10, "rewrite")}},
		&countingCorrector{err: apperrors.ErrUpstreamTransient},
		Options{AutoApply: true},
	)
	res, _ := s.Run(context.Background(), "x", nil)
	assert.Equal(t, entity.AbortGenerationError, res.Reason)
	assert.Equal(t, "x", res.Code)
}

func TestReentrantRunIsNoop(t *testing.T) {
	critic := &fixedCritic{scores: []entity.QualityScore{uniformScore(95, "")}, gate: make(chan struct{})}
	s := NewSession("s1", critic, &countingCorrector{}, Options{})

	done := make(chan Result, 1)
	go func() {
		res, _ := s.Run(context.Background(), "x", nil)
		done <- res
	}()

	require.Eventually(t, func() bool { return critic.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, s.IsRunning())

	_, started := s.Run(context.Background(), "y", nil)
	assert.False(t, started)
	assert.False(t, s.Reset())

	close(critic.gate)
	res := <-done
	// Reset 在运行中请求了停止，但评审已在进行，本轮仍然得到结果
	assert.Equal(t, entity.AutopilotConverged, res.State)
	assert.EqualValues(t, 1, critic.calls.Load())
}

func TestStopTakesEffectBeforeNextScoring(t *testing.T) {
	critic := &fixedCritic{scores: []entity.QualityScore{uniformScore(50, "fix")}}
	corrector := &countingCorrector{}
	s := NewSession("s1", critic, corrector, Options{MaxIterations: 10, AutoApply: true, Delay: time.Hour})

	done := make(chan Result, 1)
	go func() {
		res, _ := s.Run(context.Background(), "x", nil)
		done <- res
	}()

	require.Eventually(t, func() bool { return corrector.calls.Load() == 1 }, time.Second, time.Millisecond)
	s.Stop()

	select {
	case res := <-done:
		assert.Equal(t, entity.AbortStopped, res.Reason)
		assert.EqualValues(t, 1, critic.calls.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not interrupt the pause")
	}
}

func TestCancelledContextAborts(t *testing.T) {
	critic := &fixedCritic{scores: []entity.QualityScore{uniformScore(50, "fix")}, gate: make(chan struct{})}
	s := NewSession("s1", critic, &countingCorrector{}, Options{AutoApply: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		res, _ := s.Run(ctx, "x", nil)
		done <- res
	}()

	require.Eventually(t, func() bool { return critic.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	res := <-done
	assert.Equal(t, entity.AbortCancelled, res.Reason)
	assert.False(t, s.IsRunning())
}

func TestResetAndRerun(t *testing.T) {
	s := NewSession("s1", &fixedCritic{scores: []entity.QualityScore{uniformScore(50, "fix")}}, &countingCorrector{}, Options{MaxIterations: 1, AutoApply: true})

	res, _ := s.Run(context.Background(), "x", nil)
	require.Equal(t, entity.AbortBudget, res.Reason)

	require.True(t, s.Reset())
	snap := s.Snapshot()
	assert.Equal(t, entity.AutopilotIdle, snap.State)
	assert.Zero(t, snap.IterationCount)
	assert.Empty(t, snap.History)

	res, started := s.Run(context.Background(), "y", nil)
	require.True(t, started)
	assert.Equal(t, 1, res.Iterations)
}

func passingSession(id string) *Session {
	return NewSession(id, &fixedCritic{scores: []entity.QualityScore{uniformScore(95, "")}}, &countingCorrector{}, Options{})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(passingSession)

	a, err := r.GetOrCreate("a")
	require.NoError(t, err)
	again, err := r.GetOrCreate("a")
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, "a", a.ID())

	_, ok := r.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	assert.Zero(t, r.Len())
	r.StopAll()
}

func TestRegistryRunKeepsFinishedSessionForRetention(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	r := NewRegistry(passingSession, WithRetention(time.Minute))
	r.now = func() time.Time { return clock }

	res, started, err := r.Run(context.Background(), "done", "<p></p>", nil)
	require.NoError(t, err)
	require.True(t, started)
	assert.Equal(t, entity.AutopilotConverged, res.State)

	clock = clock.Add(30 * time.Second)
	_, err = r.GetOrCreate("other")
	require.NoError(t, err)
	s, ok := r.Get("done")
	require.True(t, ok)
	assert.Equal(t, entity.AutopilotConverged, s.Snapshot().State)

	clock = clock.Add(2 * time.Minute)
	_, err = r.GetOrCreate("fresh")
	require.NoError(t, err)
	_, ok = r.Get("done")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryStaysBoundedUnderManyIDs(t *testing.T) {
	r := NewRegistry(passingSession, WithCapacity(100))
	clock := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}

	for i := range 1000 {
		s, err := r.GetOrCreate(fmt.Sprintf("sid-%d", i))
		require.NoError(t, err)
		s.Stop()
	}
	assert.Equal(t, 100, r.Len())
	_, ok := r.Get("sid-999")
	assert.True(t, ok)
	_, ok = r.Get("sid-0")
	assert.False(t, ok)
}

func TestRegistryRejectsWhenEverySlotIsRunning(t *testing.T) {
	gate := make(chan struct{})
	r := NewRegistry(func(id string) *Session {
		return NewSession(id, &fixedCritic{scores: []entity.QualityScore{uniformScore(95, "")}, gate: gate}, &countingCorrector{}, Options{})
	}, WithCapacity(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = r.Run(context.Background(), "busy", "<p></p>", nil)
	}()
	require.Eventually(t, func() bool {
		s, ok := r.Get("busy")
		return ok && s.IsRunning()
	}, time.Second, 5*time.Millisecond)

	_, err := r.GetOrCreate("second")
	assert.ErrorIs(t, err, ErrSessionCapacity)

	close(gate)
	<-done
	_, err = r.GetOrCreate("second")
	assert.NoError(t, err)
}
