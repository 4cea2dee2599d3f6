package estimate_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/ceplayer/internal/estimate"
)

func TestBase_Priority(t *testing.T) {
	tests := []struct {
		name  string
		shape estimate.BlockShape
		want  int
	}{
		{
			name:  "audio wins over everything",
			shape: estimate.BlockShape{AudioSeconds: 42.3, ImageCount: 5, QuizQuestions: 3, HasVideo: true},
			want:  43,
		},
		{
			name:  "images when audio unknown",
			shape: estimate.BlockShape{ImageCount: 5, QuizQuestions: 3, HasVideo: true},
			want:  50,
		},
		{
			name:  "few images floor at 30",
			shape: estimate.BlockShape{ImageCount: 2},
			want:  30,
		},
		{
			name:  "quiz",
			shape: estimate.BlockShape{QuizQuestions: 4, HasVideo: true},
			want:  240,
		},
		{
			name:  "video",
			shape: estimate.BlockShape{HasVideo: true},
			want:  120,
		},
		{
			name:  "nothing known",
			shape: estimate.BlockShape{},
			want:  60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, estimate.Base(tt.shape))
		})
	}
}

func TestBase_MalformedAudioFallsThrough(t *testing.T) {
	for _, d := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 0, -3} {
		shape := estimate.BlockShape{AudioSeconds: d, ImageCount: 3}
		assert.Equal(t, 30, estimate.Base(shape), "duration %v should be treated as unknown", d)
	}
}

func TestBase_ImagesProperty(t *testing.T) {
	for n := 1; n <= 40; n++ {
		want := n * 10
		if want < 30 {
			want = 30
		}
		assert.Equal(t, want, estimate.Base(estimate.BlockShape{ImageCount: n}))
	}
}

func TestBase_QuizProperty(t *testing.T) {
	for q := 1; q <= 20; q++ {
		assert.Equal(t, q*60, estimate.Base(estimate.BlockShape{QuizQuestions: q}))
	}
}

func TestAudioBuffersProperty(t *testing.T) {
	for tenths := 0; tenths <= 6000; tenths += 7 {
		d := float64(tenths) / 10
		shape := estimate.BlockShape{AudioSeconds: d}
		if !shape.AudioKnown() {
			continue
		}
		base := int(math.Ceil(d))
		gov := estimate.Estimate(shape, estimate.GovernorBuffer)
		auto := estimate.Estimate(shape, estimate.AutoAdvanceBuffer)

		assert.Equal(t, ceilExact(base, 107), gov, "governor for d=%v", d)
		assert.Equal(t, ceilExact(base, 117), auto, "auto-advance for d=%v", d)
		assert.GreaterOrEqual(t, auto, gov, "auto-advance must never finish before the governor (d=%v)", d)
	}
}

func TestBuffers_AutoAdvanceNeverBelowGovernor(t *testing.T) {
	require.NoError(t, estimate.DefaultBuffers.Validate())
	assert.GreaterOrEqual(t, estimate.DefaultBuffers.AutoAdvanceBP, estimate.DefaultBuffers.GovernorBP)

	for base := 0; base <= 7200; base++ {
		gov := estimate.DefaultBuffers.Apply(base, estimate.GovernorBuffer)
		auto := estimate.DefaultBuffers.Apply(base, estimate.AutoAdvanceBuffer)
		if auto < gov {
			t.Fatalf("base %d: auto-advance %d < governor %d", base, auto, gov)
		}
	}
}

func TestBuffers_Validate(t *testing.T) {
	assert.Error(t, estimate.Buffers{GovernorBP: 1700, AutoAdvanceBP: 700}.Validate())
	assert.Error(t, estimate.Buffers{GovernorBP: -1, AutoAdvanceBP: 700}.Validate())
	assert.NoError(t, estimate.Buffers{GovernorBP: 1500, AutoAdvanceBP: 1500}.Validate())
}

func TestScenarios(t *testing.T) {
	t.Run("three images, no audio", func(t *testing.T) {
		shape := estimate.BlockShape{ImageCount: 3}
		assert.Equal(t, 30, estimate.Base(shape))
		assert.Equal(t, 36, estimate.Estimate(shape, estimate.AutoAdvanceBuffer))
	})

	t.Run("two question quiz", func(t *testing.T) {
		shape := estimate.BlockShape{QuizQuestions: 2}
		assert.Equal(t, 120, estimate.Base(shape))
		assert.Equal(t, 129, estimate.Estimate(shape, estimate.GovernorBuffer))
	})

	t.Run("late audio resolves to 42.3s", func(t *testing.T) {
		shape := estimate.BlockShape{AudioSeconds: 42.3}
		assert.Equal(t, 47, estimate.Estimate(shape, estimate.GovernorBuffer))
	})
}

func TestImageCycle_LastImageAtCountdownEnd(t *testing.T) {
	for _, images := range []int{2, 3, 5, 7} {
		shape := estimate.BlockShape{ImageCount: images}
		total := estimate.Estimate(shape, estimate.AutoAdvanceBuffer)
		totalMillis := int64(total) * 1000

		assert.Equal(t, 0, estimate.ImageIndexAt(0, total, images))
		assert.Equal(t, images-1, estimate.ImageIndexAt(totalMillis-1, total, images),
			"last image should be up just before the countdown ends (%d images, %ds)", images, total)
	}
}

func TestImageCycleInterval(t *testing.T) {
	assert.Equal(t, 12000, estimate.ImageCycleInterval(36, 3))
	assert.Equal(t, estimate.DefaultImageCycleMillis, estimate.ImageCycleInterval(0, 3))
	assert.Equal(t, 0, estimate.ImageCycleInterval(36, 0))
}

// ceilExact computes ceil(base * pct / 100) without floats.
func ceilExact(base, pct int) int {
	return (base*pct + 99) / 100
}
