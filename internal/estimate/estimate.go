// Package estimate derives the minimum dwell time a block requires from its content shape.
package estimate

import (
	"fmt"
	"math"
)

const (
	imageSecondsEach   = 10
	imageMinimum       = 30
	quizSecondsEach    = 60
	videoSeconds       = 120
	fallbackSeconds    = 60
	basisPointsPerUnit = 10000

	// DefaultImageCycleMillis is used when no total is known yet.
	DefaultImageCycleMillis = 8000
)

// BlockShape is the subset of block content the timing rules read.
type BlockShape struct {
	// AudioSeconds is the measured audio length; zero, negative, NaN and Inf mean unknown.
	AudioSeconds  float64
	ImageCount    int
	QuizQuestions int
	HasVideo      bool
}

// AudioKnown reports whether the shape carries a usable measured audio duration.
func (s BlockShape) AudioKnown() bool {
	d := s.AudioSeconds
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d > 0
}

// Base returns the unbuffered required seconds, first matching rule wins:
// audio, images, quiz, video, fallback.
func Base(s BlockShape) int {
	switch {
	case s.AudioKnown():
		return int(math.Ceil(s.AudioSeconds))
	case s.ImageCount > 0:
		return max(imageMinimum, s.ImageCount*imageSecondsEach)
	case s.QuizQuestions > 0:
		return s.QuizQuestions * quizSecondsEach
	case s.HasVideo:
		return videoSeconds
	default:
		return fallbackSeconds
	}
}

// BufferPolicy names which consumer a buffered estimate is for.
type BufferPolicy int

const (
	GovernorBuffer BufferPolicy = iota
	AutoAdvanceBuffer
)

func (p BufferPolicy) String() string {
	switch p {
	case GovernorBuffer:
		return "governor"
	case AutoAdvanceBuffer:
		return "auto_advance"
	default:
		return "unknown"
	}
}

// Buffers holds the padding for each policy in basis points (700 = 7%).
type Buffers struct {
	GovernorBP    int
	AutoAdvanceBP int
}

// DefaultBuffers pads the governor by 7% and auto-advance by 17%.
var DefaultBuffers = Buffers{GovernorBP: 700, AutoAdvanceBP: 1700}

// Validate rejects negative buffers and any auto-advance buffer smaller than the governor's,
// which would let the convenience timer finish before the gate opens.
func (b Buffers) Validate() error {
	if b.GovernorBP < 0 || b.AutoAdvanceBP < 0 {
		return fmt.Errorf("buffers must be non-negative: governor=%d auto_advance=%d", b.GovernorBP, b.AutoAdvanceBP)
	}
	if b.AutoAdvanceBP < b.GovernorBP {
		return fmt.Errorf("auto-advance buffer (%d bp) must be >= governor buffer (%d bp)", b.AutoAdvanceBP, b.GovernorBP)
	}
	return nil
}

func (b Buffers) basisPoints(p BufferPolicy) int {
	if p == AutoAdvanceBuffer {
		return b.AutoAdvanceBP
	}
	return b.GovernorBP
}

// Apply pads base seconds by the policy's buffer: ceil(base * (1 + buffer)).
// Integer arithmetic keeps ceil(120*1.07) at 129 rather than drifting on float rounding.
func (b Buffers) Apply(base int, p BufferPolicy) int {
	if base <= 0 {
		return 0
	}
	num := base * (basisPointsPerUnit + b.basisPoints(p))
	return (num + basisPointsPerUnit - 1) / basisPointsPerUnit
}

// Estimate returns the buffered required seconds for a shape under a policy.
func (b Buffers) Estimate(s BlockShape, p BufferPolicy) int {
	return b.Apply(Base(s), p)
}

// Estimate uses DefaultBuffers.
func Estimate(s BlockShape, p BufferPolicy) int {
	return DefaultBuffers.Estimate(s, p)
}

// ImageCycleInterval returns how long each image stays up in auto-advance mode so the
// last image is showing when the countdown reaches zero.
func ImageCycleInterval(totalSeconds, imageCount int) int {
	if imageCount <= 0 {
		return 0
	}
	if totalSeconds <= 0 {
		return DefaultImageCycleMillis
	}
	return totalSeconds * 1000 / imageCount
}

// ImageIndexAt returns which image is showing after elapsedMillis of cycling. The index is
// proportional to the total rather than stepped by the truncated interval, so the last image
// is always the one up when the countdown ends.
func ImageIndexAt(elapsedMillis int64, totalSeconds, imageCount int) int {
	if imageCount <= 1 || elapsedMillis <= 0 {
		return 0
	}
	if totalSeconds <= 0 {
		return int(elapsedMillis/DefaultImageCycleMillis) % imageCount
	}
	totalMillis := int64(totalSeconds) * 1000
	return int(elapsedMillis*int64(imageCount)/totalMillis) % imageCount
}
