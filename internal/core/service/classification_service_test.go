package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kakitori/kakitori-api/internal/core/domain"
	"github.com/kakitori/kakitori-api/internal/core/ports"
)

type stubModel struct {
	scores []float32
	err    error
	input  ports.Tensor
	calls  int
}

func (m *stubModel) Predict(_ context.Context, in ports.Tensor) ([]float32, error) {
	m.calls++
	m.input = in
	return m.scores, m.err
}

func (m *stubModel) Ping(context.Context) error { return nil }

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestClassify_PicksHighestScore(t *testing.T) {
	model := &stubModel{scores: []float32{0.1, 0.7, 0.2}}
	svc := NewClassificationService(model, zerolog.Nop())

	got, err := svc.Classify(context.Background(), pngBytes(t, 32, 48, color.RGBA{R: 10, G: 20, B: 30, A: 255}))
	require.NoError(t, err)

	assert.Equal(t, "丁", got.Label)
	assert.InDelta(t, 70.0, got.ConfidenceScore, 0.001)
	assert.Equal(t, domain.Explain("丁"), got.Explanation)
}

func TestClassify_ResizesToModelInput(t *testing.T) {
	model := &stubModel{scores: []float32{1, 0, 0}}
	svc := NewClassificationService(model, zerolog.Nop())

	_, err := svc.Classify(context.Background(), pngBytes(t, 10, 500, color.RGBA{R: 200, G: 100, B: 50, A: 255}))
	require.NoError(t, err)

	require.Len(t, model.input, 1)
	require.Len(t, model.input[0], InputSize)
	require.Len(t, model.input[0][0], InputSize)
	assert.Equal(t, []float32{200, 100, 50}, model.input[0][InputSize-1][InputSize-1])
}

func TestClassify_InvalidImage(t *testing.T) {
	model := &stubModel{scores: []float32{1, 0, 0}}
	svc := NewClassificationService(model, zerolog.Nop())

	_, err := svc.Classify(context.Background(), []byte("definitely not an image"))
	assert.ErrorIs(t, err, domain.ErrInvalidImage)
	assert.Zero(t, model.calls)
}

func TestClassify_ModelFailure(t *testing.T) {
	boom := errors.New("model unavailable")
	svc := NewClassificationService(&stubModel{err: boom}, zerolog.Nop())

	_, err := svc.Classify(context.Background(), pngBytes(t, 4, 4, color.White))
	assert.ErrorIs(t, err, boom)
}

func TestClassify_WrongOutputShape(t *testing.T) {
	svc := NewClassificationService(&stubModel{scores: []float32{0.5, 0.5}}, zerolog.Nop())

	_, err := svc.Classify(context.Background(), pngBytes(t, 4, 4, color.White))
	assert.ErrorIs(t, err, domain.ErrModelOutput)
}
