package app

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hideo54/image-adjuster/internal/domain"
	"github.com/hideo54/image-adjuster/internal/imageseq"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu        sync.Mutex
	snapshots []domain.Snapshot
}

func (p *recordingPublisher) PublishSnapshot(_ uuid.UUID, snapshot domain.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, snapshot)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snapshots)
}

func (p *recordingPublisher) last() domain.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshots[len(p.snapshots)-1]
}

type countingObserver struct {
	mu          sync.Mutex
	opened      int
	closed      int
	transitions int
	ticks       int
	commands    map[domain.CommandType]int
}

func (o *countingObserver) SessionOpened() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened++
}

func (o *countingObserver) SessionClosed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
}

func (o *countingObserver) FrameTransition() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions++
}

func (o *countingObserver) BlinkTick() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks++
}

func (o *countingObserver) CommandHandled(command domain.CommandType, _ bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.commands == nil {
		o.commands = make(map[domain.CommandType]int)
	}
	o.commands[command]++
}

func testOptions(maxIndex int) SessionOptions {
	return SessionOptions{
		MaxIndex:      maxIndex,
		BlinkInterval: time.Second,
		Images:        imageseq.New("indexed_images", ".jpg", maxIndex),
	}
}

func newTestSession(t *testing.T, maxIndex int) *Session {
	t.Helper()
	s := NewSession(uuid.New(), testOptions(maxIndex), clockwork.NewFakeClock(), nil, nil)
	t.Cleanup(s.Close)
	return s
}

func newBlinkSession(t *testing.T) (*Session, *clockwork.FakeClock, *recordingPublisher) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	pub := &recordingPublisher{}
	s := NewSession(uuid.New(), testOptions(53), clock, pub, nil)
	t.Cleanup(s.Close)
	return s, clock, pub
}

// advanceTick moves the fake clock one blink interval and waits for the
// resulting snapshot to be published.
func advanceTick(t *testing.T, clock *clockwork.FakeClock, pub *recordingPublisher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	before := pub.count()
	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return pub.count() == before+1
	}, 2*time.Second, time.Millisecond)
}

func TestNewSession_Defaults(t *testing.T) {
	s := newTestSession(t, 53)

	assert.Equal(t, domain.SessionState{
		FrameIndex:     0,
		BaseOpacity:    0.5,
		OverlayOpacity: 0.5,
	}, s.State())
	assert.True(t, s.CanGoNext())
	assert.False(t, s.CanGoBack())
}

func TestSession_NudgesAreSignedSums(t *testing.T) {
	deltas := []int{1, 1, -1, 1, -1, -1, -1, 1, 1, 1, -1, 1}
	want := 0
	for _, d := range deltas {
		want += d
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for range 5 {
		shuffled := append([]int(nil), deltas...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		s := newTestSession(t, 53)
		for _, d := range shuffled {
			s.NudgeX(d)
			s.NudgeY(-d)
		}

		state := s.State()
		assert.Equal(t, want, state.OffsetX)
		assert.Equal(t, -want, state.OffsetY)
	}
}

func TestSession_NudgesAreUnbounded(t *testing.T) {
	s := newTestSession(t, 53)

	for range 500 {
		s.NudgeX(-1)
		s.NudgeY(1)
	}

	state := s.State()
	assert.Equal(t, -500, state.OffsetX)
	assert.Equal(t, 500, state.OffsetY)
}

func TestSession_RotationHasNoDrift(t *testing.T) {
	s := newTestSession(t, 53)

	for range 10 {
		s.NudgeRotation(1)
	}
	assert.Equal(t, 1.0, s.State().RotationDeg)

	for range 13 {
		s.NudgeRotation(-1)
	}
	assert.Equal(t, -0.3, s.State().RotationDeg)
}

func TestQuantizeRotation(t *testing.T) {
	tests := []struct {
		current float64
		delta   float64
		want    float64
	}{
		{0, 1, 0.1},
		{0, -1, -0.1},
		{0.1, 1, 0.2},
		{0.30000000000000004, 1, 0.4},
		{0.7, -1, 0.6},
		{-0.2, -1, -0.3},
		{2.9999999999999996, 1, 3.1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, quantizeRotation(tt.current, tt.delta), "current=%v delta=%v", tt.current, tt.delta)
	}
}

func TestSession_SetOpacity(t *testing.T) {
	s := newTestSession(t, 53)

	assert.True(t, s.SetBaseOpacity(0.3))
	assert.True(t, s.SetOverlayOpacity(0.8))

	state := s.State()
	assert.Equal(t, 0.3, state.BaseOpacity)
	assert.Equal(t, 0.8, state.OverlayOpacity)
}

func TestSession_SetOpacityStaysInRange(t *testing.T) {
	s := newTestSession(t, 53)

	s.SetBaseOpacity(1.7)
	s.SetOverlayOpacity(-2)
	state := s.State()
	assert.Equal(t, 1.0, state.BaseOpacity)
	assert.Equal(t, 0.0, state.OverlayOpacity)

	s.SetBaseOpacity(0.30000000000000004)
	assert.Equal(t, 0.3, s.State().BaseOpacity)
}

func TestSession_GoNextThenBackResetsTransform(t *testing.T) {
	s := newTestSession(t, 53)
	s.SetBaseOpacity(0.2)
	s.SetOverlayOpacity(0.7)
	s.NudgeX(4)
	s.NudgeY(-2)
	s.NudgeRotation(3)

	require.True(t, s.GoNext())
	s.NudgeX(9)
	s.NudgeRotation(-1)
	require.True(t, s.GoBack())

	state := s.State()
	assert.Equal(t, 0, state.FrameIndex)
	assert.Equal(t, 0, state.OffsetX)
	assert.Equal(t, 0, state.OffsetY)
	assert.Equal(t, 0.0, state.RotationDeg)
	assert.Equal(t, 0.2, state.BaseOpacity)
	assert.Equal(t, 0.7, state.OverlayOpacity)
}

func TestSession_GoNextDisabledAtMaxIndex(t *testing.T) {
	s := newTestSession(t, 2)

	require.True(t, s.GoNext())
	require.True(t, s.GoNext())
	s.NudgeX(5)

	assert.False(t, s.CanGoNext())
	assert.True(t, s.CanGoBack())
	assert.False(t, s.GoNext())

	state := s.State()
	assert.Equal(t, 2, state.FrameIndex)
	assert.Equal(t, 5, state.OffsetX, "rejected navigation leaves the transform alone")
}

func TestSession_GoBackDisabledAtZero(t *testing.T) {
	s := newTestSession(t, 53)
	s.NudgeY(3)

	assert.False(t, s.CanGoBack())
	assert.False(t, s.GoBack())
	assert.Equal(t, 3, s.State().OffsetY)
}

func TestSession_ZeroMaxIndex(t *testing.T) {
	s := newTestSession(t, 0)

	assert.False(t, s.CanGoNext())
	assert.False(t, s.CanGoBack())
	assert.False(t, s.GoNext())
}

func TestSession_ExampleScenario(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewSession(uuid.New(), testOptions(53), clockwork.NewFakeClock(), pub, nil)
	t.Cleanup(s.Close)

	for _, key := range []domain.Key{domain.KeyRight, domain.KeyRight, domain.KeyDown} {
		_, err := s.PressKey(key)
		require.NoError(t, err)
	}

	state := s.State()
	assert.Equal(t, 2, state.OffsetX)
	assert.Equal(t, 1, state.OffsetY)
	assert.Equal(t, 0.0, state.RotationDeg)

	require.True(t, s.GoNext())

	assert.Equal(t, domain.SessionState{
		FrameIndex:     1,
		BaseOpacity:    0.5,
		OverlayOpacity: 0.5,
	}, s.State())

	require.Equal(t, 4, pub.count())
	last := pub.last()
	assert.Equal(t, uint64(4), last.Version)
	assert.Equal(t, "01.jpg", last.View.Base.Name)
	assert.Equal(t, "02.jpg", last.View.Overlay.Name)
	assert.True(t, last.CanGoBack)
}

func TestSession_BlinkAlternatesAndStops(t *testing.T) {
	s, clock, pub := newBlinkSession(t)

	require.True(t, s.ToggleBlink())
	assert.True(t, s.State().BlinkEnabled)

	advanceTick(t, clock, pub)
	state := s.State()
	assert.Equal(t, 1.0, state.BaseOpacity)
	assert.Equal(t, 0.0, state.OverlayOpacity)

	advanceTick(t, clock, pub)
	state = s.State()
	assert.Equal(t, 0.0, state.BaseOpacity)
	assert.Equal(t, 1.0, state.OverlayOpacity)

	require.True(t, s.ToggleBlink())
	state = s.State()
	assert.False(t, state.BlinkEnabled)
	assert.Equal(t, 0.5, state.BaseOpacity)
	assert.Equal(t, 0.5, state.OverlayOpacity)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 0), "blink ticker should be cancelled")

	published := pub.count()
	clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, published, pub.count(), "no tick after stop")
	state = s.State()
	assert.Equal(t, 0.5, state.BaseOpacity)
	assert.Equal(t, 0.5, state.OverlayOpacity)
}

func TestSession_StartBlinkIsIdempotent(t *testing.T) {
	s, clock, pub := newBlinkSession(t)

	assert.True(t, s.StartBlink())
	assert.False(t, s.StartBlink())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1), "exactly one ticker runs")

	advanceTick(t, clock, pub)
	state := s.State()
	assert.Equal(t, 1.0, state.BaseOpacity)
	assert.Equal(t, 0.0, state.OverlayOpacity)
}

func TestSession_StopBlinkWhenOffIsNoop(t *testing.T) {
	s, _, pub := newBlinkSession(t)
	s.SetBaseOpacity(0.9)
	published := pub.count()

	assert.False(t, s.StopBlink())
	assert.Equal(t, 0.9, s.State().BaseOpacity)
	assert.Equal(t, published, pub.count())
}

func TestSession_OpacityIgnoredWhileBlinking(t *testing.T) {
	s, _, _ := newBlinkSession(t)

	require.True(t, s.StartBlink())
	assert.False(t, s.SetBaseOpacity(0.1))
	assert.False(t, s.SetOverlayOpacity(0.9))

	state := s.State()
	assert.Equal(t, 0.5, state.BaseOpacity)
	assert.Equal(t, 0.5, state.OverlayOpacity)

	require.True(t, s.StopBlink())
	assert.True(t, s.SetBaseOpacity(0.1))
	assert.True(t, s.SetOverlayOpacity(0.9))

	state = s.State()
	assert.Equal(t, 0.1, state.BaseOpacity)
	assert.Equal(t, 0.9, state.OverlayOpacity)
}

func TestSession_FrameChangeEndsBlink(t *testing.T) {
	s, clock, pub := newBlinkSession(t)

	require.True(t, s.StartBlink())
	advanceTick(t, clock, pub)
	require.True(t, s.GoNext())

	state := s.State()
	assert.Equal(t, 1, state.FrameIndex)
	assert.False(t, state.BlinkEnabled)
	assert.Equal(t, 0.5, state.BaseOpacity)
	assert.Equal(t, 0.5, state.OverlayOpacity)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 0))
}

func TestSession_CloseCancelsBlink(t *testing.T) {
	s, clock, pub := newBlinkSession(t)

	require.True(t, s.StartBlink())
	s.Close()
	s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 0))

	published := pub.count()
	clock.Advance(3 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, published, pub.count())

	assert.False(t, s.StartBlink(), "closed session refuses to blink")
}

func TestSession_ObserverCountsTransitionsAndTicks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	pub := &recordingPublisher{}
	obs := &countingObserver{}
	s := NewSession(uuid.New(), testOptions(53), clock, pub, obs)
	t.Cleanup(s.Close)

	s.GoNext()
	s.GoBack()
	s.GoBack()
	s.StartBlink()
	advanceTick(t, clock, pub)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 2, obs.transitions)
	assert.Equal(t, 1, obs.ticks)
}

func TestSession_SnapshotVersionIncreases(t *testing.T) {
	s := newTestSession(t, 53)
	assert.Equal(t, uint64(0), s.Snapshot().Version)

	s.NudgeX(1)
	s.NudgeX(1)

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.Version)
	assert.Equal(t, s.ID(), snap.SessionID)
	assert.Equal(t, "translateX(2px) translateY(0px) rotate(0deg)", snap.View.Overlay.Transform)
}
