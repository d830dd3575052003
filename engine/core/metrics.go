package core

import "time"

const frameAverageCount = 30

// FrameMetrics keeps a rolling average of frame times and the number of
// frames presented during the last full second.
type FrameMetrics struct {
	samples     [frameAverageCount]float64
	next        int
	averageMS   float64
	frames      int
	accumulated float64
	fps         float64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{}
}

// Update records the duration of one frame.
func (m *FrameMetrics) Update(frameTime time.Duration) {
	ms := float64(frameTime) / float64(time.Millisecond)

	m.samples[m.next] = ms
	if m.next == frameAverageCount-1 {
		sum := 0.0
		for _, s := range m.samples {
			sum += s
		}
		m.averageMS = sum / frameAverageCount
	}
	m.next = (m.next + 1) % frameAverageCount

	m.frames++
	m.accumulated += ms
	if m.accumulated >= 1000 {
		m.fps = float64(m.frames)
		m.accumulated -= 1000
		m.frames = 0
	}
}

func (m *FrameMetrics) FPS() float64 {
	return m.fps
}

// FrameTime is the average frame time in milliseconds over the last
// completed window of samples.
func (m *FrameMetrics) FrameTime() float64 {
	return m.averageMS
}
