package stream

import (
	"time"

	"github.com/google/uuid"
)

// Session is the per-connection streaming state. It is owned by one
// connection's goroutine and is not safe for concurrent use.
type Session struct {
	ID                string
	PipelineID        string
	FrameIndex        int
	DroppedFrames     int
	LastProcessed     time.Time
	DropThreshold     float64
	SlowdownThreshold float64
	FrameBudgetMs     float64

	slowDownWarned bool
}

// NewSession creates a session with a fresh id. Thresholds are copied
// from cfg and not re-read.
func NewSession(pipelineID string, cfg Config) *Session {
	cfg.ApplyDefaults()
	return &Session{
		ID:                uuid.NewString(),
		PipelineID:        pipelineID,
		DropThreshold:     cfg.DropLimit(),
		SlowdownThreshold: cfg.SlowdownLimit(),
		FrameBudgetMs:     cfg.FrameBudgetMs,
	}
}

// NextFrame advances the frame index and returns it.
func (s *Session) NextFrame() int {
	s.FrameIndex++
	return s.FrameIndex
}

// MarkDropped records that the current frame's result was withheld.
func (s *Session) MarkDropped() {
	s.DroppedFrames++
}

// MarkProcessed records the time the current frame finished.
func (s *Session) MarkProcessed(t time.Time) {
	s.LastProcessed = t
}

// DropRate is dropped frames over frames received, 0 before the first frame.
func (s *Session) DropRate() float64 {
	if s.FrameIndex == 0 {
		return 0
	}
	return float64(s.DroppedFrames) / float64(s.FrameIndex)
}

// ShouldDropFrame reports whether the current frame's result should be
// withheld. A frame over the latency budget is dropped; once the drop
// rate is above the drop threshold the budget is halved, so sustained
// latency sheds load sooner.
func (s *Session) ShouldDropFrame(processingMs float64) bool {
	budget := s.FrameBudgetMs
	if s.DropRate() > s.DropThreshold {
		budget /= 2
	}
	return processingMs > budget
}

// ShouldSlowDown returns true the first time the drop rate exceeds the
// slow-down threshold, and false on every later call.
func (s *Session) ShouldSlowDown() bool {
	if s.slowDownWarned || s.DropRate() <= s.SlowdownThreshold {
		return false
	}
	s.slowDownWarned = true
	return true
}
