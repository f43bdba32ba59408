package libetude

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crlotwhite/libetude-sub011/internal/plugin"
	"github.com/crlotwhite/libetude-sub011/internal/scheduler"
	"github.com/crlotwhite/libetude-sub011/internal/semver"
	"github.com/crlotwhite/libetude-sub011/internal/stream"
)

// doublingModule is a minimal plugin.Module that doubles every sample,
// used to exercise the active effect chain end to end through a real Stage.
type doublingModule struct{}

func (doublingModule) Initialize(context.Context, map[string]any) error { return nil }
func (doublingModule) Process(_ context.Context, in, out []float32, _ int) error {
	for i := range in {
		out[i] = in[i] * 2
	}
	return nil
}
func (doublingModule) Finalize(context.Context) error                 { return nil }
func (doublingModule) SetParameter(string, any) error                 { return nil }
func (doublingModule) GetParameter(string) (any, error)                { return nil, nil }
func (doublingModule) Reset() error                                    { return nil }
func (doublingModule) Suspend() error                                  { return nil }
func (doublingModule) Resume() error                                   { return nil }
func (doublingModule) GetInfo(string) string                           { return "" }
func (doublingModule) GetLatency() time.Duration                       { return 0 }
func (doublingModule) GetTailTime() time.Duration                      { return 0 }

func newTestServices(t *testing.T) *Services {
	t.Helper()
	svc, err := NewServices("", t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func identityStage(ctx context.Context, chunk *stream.Chunk, quality float64) stream.StageResult {
	return stream.StageResult{Chunk: chunk}
}

func TestEngineStreamRoundTrip(t *testing.T) {
	svc := newTestServices(t)
	eng := NewEngine(svc, "engine-1", identityStage, 2)
	t.Cleanup(func() { _ = eng.Close() })

	require.NoError(t, eng.Start())
	assert.Equal(t, stream.StateBuffering, eng.GetState())

	samples := make([]float32, svc.Config.Stream.ChunkSize*svc.Config.Stream.ChannelCount)
	for i := range samples {
		samples[i] = float32(i) / float32(len(samples))
	}
	require.NoError(t, eng.PushAudio(samples, svc.Config.Stream.ChannelCount))

	require.Eventually(t, func() bool {
		return eng.GetState() == stream.StateStreaming
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, eng.Stop())
	assert.Equal(t, stream.StateIdle, eng.GetState())
}

func TestEngineRegisterResolveAndLoadOrder(t *testing.T) {
	svc := newTestServices(t)
	eng := NewEngine(svc, "engine-2", identityStage, 1)
	t.Cleanup(func() { _ = eng.Close() })

	base := plugin.NewRecord(plugin.Metadata{Name: "base", Version: mustEngineVersion(t, "1.0.0"), UUID: uuid.New()}, nil)
	dependent := plugin.NewRecord(plugin.Metadata{Name: "dependent", Version: mustEngineVersion(t, "1.0.0"), UUID: uuid.New()}, []plugin.Dependency{
		{TargetName: "base", Range: semver.Range{Min: mustEngineVersion(t, "1.0.0")}, Required: true},
	})

	require.NoError(t, eng.RegisterPlugin(base))
	require.NoError(t, eng.RegisterPlugin(dependent))

	results := eng.ResolveAll()
	require.NotEmpty(t, results)
	assert.False(t, eng.CheckCircular())

	order := eng.LoadOrder()
	require.Len(t, order, 2)
	assert.Equal(t, "base", order[0])
	assert.Equal(t, "dependent", order[1])
}

func TestEngineUnregisterInvalidatesCache(t *testing.T) {
	svc := newTestServices(t)
	eng := NewEngine(svc, "engine-3", identityStage, 1)
	t.Cleanup(func() { _ = eng.Close() })

	rec := plugin.NewRecord(plugin.Metadata{Name: "solo", Version: mustEngineVersion(t, "1.0.0"), UUID: uuid.New()}, nil)
	require.NoError(t, eng.RegisterPlugin(rec))

	_, err := svc.Cache.Load("solo")
	require.NoError(t, err)

	eng.UnregisterPlugin("solo")
	_, err = svc.Cache.Load("solo")
	require.Error(t, err)
}

func TestEngineReportAggregatesCounts(t *testing.T) {
	svc := newTestServices(t)
	eng := NewEngine(svc, "engine-4", identityStage, 1)
	t.Cleanup(func() { _ = eng.Close() })

	rec := plugin.NewRecord(plugin.Metadata{Name: "solo", Version: mustEngineVersion(t, "1.0.0"), UUID: uuid.New()}, nil)
	require.NoError(t, eng.RegisterPlugin(rec))

	r := eng.Report(nil, nil)
	assert.Equal(t, 1, r.Total)
}

func TestEngineSubmitBackgroundTaskRuns(t *testing.T) {
	svc := newTestServices(t)
	eng := NewEngine(svc, "engine-5", identityStage, 1)
	t.Cleanup(func() { _ = eng.Close() })

	done := make(chan struct{})
	id := eng.SubmitBackgroundTask(scheduler.PriorityNormal, time.Time{}, func(ctx context.Context) error {
		close(done)
		return nil
	})
	assert.NotZero(t, id)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("background task did not run")
	}
}

func TestEngineChainStageDoublesSamples(t *testing.T) {
	svc := newTestServices(t)

	rec := plugin.NewRecord(plugin.Metadata{Name: "doubler", Version: mustEngineVersion(t, "1.0.0"), UUID: uuid.New()}, nil)
	require.NoError(t, rec.Load(doublingModule{}))
	require.NoError(t, rec.Initialize(context.Background(), nil))
	require.NoError(t, rec.Activate())

	_, err := svc.Chain.Append(rec)
	require.NoError(t, err)

	eng := NewEngine(svc, "engine-chain", stream.NewChainStage(svc.Chain), 2)
	t.Cleanup(func() { _ = eng.Close() })

	require.NoError(t, eng.Start())

	samples := make([]float32, svc.Config.Stream.ChunkSize*svc.Config.Stream.ChannelCount)
	for i := range samples {
		samples[i] = 1
	}
	require.NoError(t, eng.PushAudio(samples, svc.Config.Stream.ChannelCount))

	var chunk *stream.Chunk
	require.Eventually(t, func() bool {
		c, err := eng.PopChunk()
		if err != nil || c == nil {
			return false
		}
		chunk = c
		return true
	}, time.Second, 5*time.Millisecond)

	require.NotNil(t, chunk)
	for _, s := range chunk.Samples {
		assert.Equal(t, float32(2), s)
	}
}

func TestEngineChainBypassSkipsStage(t *testing.T) {
	svc := newTestServices(t)

	rec := plugin.NewRecord(plugin.Metadata{Name: "doubler", Version: mustEngineVersion(t, "1.0.0"), UUID: uuid.New()}, nil)
	require.NoError(t, rec.Load(doublingModule{}))
	require.NoError(t, rec.Initialize(context.Background(), nil))
	require.NoError(t, rec.Activate())

	eng := NewEngine(svc, "engine-chain-bypass", stream.NewChainStage(svc.Chain), 1)
	t.Cleanup(func() { _ = eng.Close() })

	handle, err := eng.AppendToChain(rec)
	require.NoError(t, err)
	require.NoError(t, eng.SetChainBypass(handle, true))

	require.NoError(t, eng.Start())

	samples := make([]float32, svc.Config.Stream.ChunkSize*svc.Config.Stream.ChannelCount)
	for i := range samples {
		samples[i] = 1
	}
	require.NoError(t, eng.PushAudio(samples, svc.Config.Stream.ChannelCount))

	var chunk *stream.Chunk
	require.Eventually(t, func() bool {
		c, err := eng.PopChunk()
		if err != nil || c == nil {
			return false
		}
		chunk = c
		return true
	}, time.Second, 5*time.Millisecond)

	require.NotNil(t, chunk)
	for _, s := range chunk.Samples {
		assert.Equal(t, float32(1), s)
	}
}

func mustEngineVersion(t *testing.T, s string) semver.Version {
	t.Helper()
	v, err := semver.Parse(s)
	require.NoError(t, err)
	return v
}
