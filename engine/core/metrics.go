package core

import (
	"sync"

	"github.com/spaghettifunk/ffbridge/engine/containers"
)

const AVG_COUNT int = 30

type MetricsState struct {
	mu                 sync.Mutex
	window             *containers.RingQueue[float64]
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = NewMetricsState()
	})
	return nil
}

func NewMetricsState() *MetricsState {
	return &MetricsState{
		window: containers.NewRingQueue[float64](AVG_COUNT),
	}
}

// Update records one frame. frameElapsedTime is in seconds.
func (m *MetricsState) Update(frameElapsedTime float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameMS := frameElapsedTime * 1000.0
	m.window.Push(frameMS)
	sum := 0.0
	m.window.Each(func(v float64) { sum += v })
	m.MSavg = sum / float64(m.window.Len())

	m.AccumulatedFrameMS += frameMS
	if m.AccumulatedFrameMS > 1000 {
		m.FPS = float64(m.Frames)
		m.AccumulatedFrameMS -= 1000
		m.Frames = 0
	}
	m.Frames++
}

func (m *MetricsState) Frame() (float64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FPS, m.MSavg
}

func MetricsUpdate(frameElapsedTime float64) {
	MetricsInitialize()
	metricsState.Update(frameElapsedTime)
}

func MetricsFPS() float64 {
	MetricsInitialize()
	fps, _ := metricsState.Frame()
	return fps
}

func MetricsFrame() (float64, float64) {
	MetricsInitialize()
	return metricsState.Frame()
}
