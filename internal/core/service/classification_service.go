package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"github.com/kakitori/kakitori-api/internal/core/domain"
	"github.com/kakitori/kakitori-api/internal/core/ports"
)

// InputSize is the square edge, in pixels, the model expects.
const InputSize = 224

// ClassificationService decodes an image, runs it through the model and
// explains the winning label.
type ClassificationService struct {
	model ports.Model
	log   zerolog.Logger
}

func NewClassificationService(model ports.Model, log zerolog.Logger) *ClassificationService {
	return &ClassificationService{model: model, log: log}
}

func (s *ClassificationService) Classify(ctx context.Context, data []byte) (*domain.Classification, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}

	probs, err := s.model.Predict(ctx, toTensor(resize(img, InputSize)))
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if len(probs) != len(domain.Labels) {
		return nil, fmt.Errorf("classify: %w: got %d scores for %d labels", domain.ErrModelOutput, len(probs), len(domain.Labels))
	}

	best := argmax(probs)
	label := domain.Labels[best]

	s.log.Debug().Str("format", format).Str("label", label).Float32("score", probs[best]).Msg("image classified")

	return &domain.Classification{
		Label:           label,
		ConfidenceScore: float64(probs[best]) * 100,
		Explanation:     domain.Explain(label),
	}, nil
}

// resize scales img to a size×size RGBA image using nearest-neighbour sampling.
func resize(img image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// toTensor converts img into a [1][h][w][3] batch of raw 0-255 channel values.
func toTensor(img *image.RGBA) ports.Tensor {
	b := img.Bounds()
	rows := make([][][]float32, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := make([][]float32, b.Dx())
		for x := 0; x < b.Dx(); x++ {
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			row[x] = []float32{float32(img.Pix[i]), float32(img.Pix[i+1]), float32(img.Pix[i+2])}
		}
		rows[y] = row
	}
	return ports.Tensor{rows}
}

func argmax(v []float32) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
