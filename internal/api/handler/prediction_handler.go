package handler

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kakitori/kakitori-api/internal/api/metrics"
	"github.com/kakitori/kakitori-api/internal/core/domain"
	"github.com/kakitori/kakitori-api/internal/core/ports"
)

const (
	// MsgPayloadTooLarge is the 413 message for oversized images.
	MsgPayloadTooLarge = "Payload content length greater than maximum allowed: 1000000"
	msgPredictFailed   = "An error occurred while making the prediction"
)

// PredictionHandler handles image predictions, pre-labeled submissions and histories.
type PredictionHandler struct {
	service ports.PredictionService
	log     zerolog.Logger
}

func NewPredictionHandler(service ports.PredictionService, log zerolog.Logger) *PredictionHandler {
	return &PredictionHandler{service: service, log: log}
}

// --- Request / Response types ---

type predictImageRequest struct {
	// Image is the base64 encoded JPEG or PNG.
	Image string `json:"image" validate:"required"`
}

type predictionResponse struct {
	ID              string    `json:"id"`
	Result          string    `json:"result"`
	Suggestion      string    `json:"suggestion"`
	ConfidenceScore float64   `json:"confidenceScore"`
	CreatedAt       time.Time `json:"createdAt"`
}

type labeledPredictionRequest struct {
	Category        string   `json:"category" validate:"required,oneof=hiragana katakana kanji" example:"kanji"`
	Character       string   `json:"character" validate:"required,max=16" example:"七"`
	ConfidenceScore *float64 `json:"confidenceScore" validate:"required,gte=0,lte=100" example:"87.5"`
	Result          string   `json:"result,omitempty" validate:"max=16"`
	Suggestion      string   `json:"suggestion,omitempty" validate:"max=500"`
}

type labeledPredictionResponse struct {
	ID              string    `json:"id"`
	Category        string    `json:"category"`
	Character       string    `json:"character"`
	ConfidenceScore float64   `json:"confidenceScore"`
	SubmittedScore  float64   `json:"submittedScore"`
	Result          string    `json:"result"`
	Suggestion      string    `json:"suggestion"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type historyItem struct {
	ID         string `json:"id"`
	Result     string `json:"result"`
	Suggestion string `json:"suggestion"`
	CreatedAt  string `json:"createdAt"`
}

type historyEntry struct {
	ID      string      `json:"id"`
	History historyItem `json:"history"`
}

// Predict classifies an uploaded image.
//
// @Summary      Classify a handwritten character image
// @Tags         predictions
// @Accept       multipart/form-data
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        image  formData  file                 false  "JPEG or PNG image"
// @Param        body   body      predictImageRequest  false  "Base64 encoded image"
// @Success      201    {object}  Response{data=predictionResponse}
// @Failure      400    {object}  Response
// @Failure      401    {object}  Response
// @Failure      413    {object}  Response
// @Router       /predict [post]
func (h *PredictionHandler) Predict(c echo.Context) error {
	image, err := readImage(c)
	if err != nil {
		return err
	}

	p, err := h.service.PredictImage(c.Request().Context(), ports.PredictImageInput{
		UserID: optionalUID(c),
		Image:  image,
	})
	if err != nil {
		if errors.Is(err, domain.ErrPayloadTooLarge) {
			metrics.PredictionErrorsTotal.WithLabelValues("too_large").Inc()
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, MsgPayloadTooLarge).SetInternal(err)
		}
		metrics.PredictionErrorsTotal.WithLabelValues(failureReason(err)).Inc()
		h.log.Warn().Err(err).Str("request_id", requestID(c)).Msg("prediction failed")
		return echo.NewHTTPError(http.StatusBadRequest, msgPredictFailed).SetInternal(err)
	}

	metrics.PredictionsTotal.WithLabelValues("image", string(domain.OutcomeCreated)).Inc()
	return success(c, http.StatusCreated, "Model is predicted successfully", predictionResponse{
		ID:              p.ID,
		Result:          p.Result,
		Suggestion:      p.Suggestion,
		ConfidenceScore: p.ConfidenceScore,
		CreatedAt:       p.CreatedAt,
	})
}

// SubmitLabeled stores a pre-labeled prediction, keeping the best score per character.
//
// @Summary      Submit a pre-labeled prediction
// @Tags         predictions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      labeledPredictionRequest  true  "Labeled prediction"
// @Success      201   {object}  Response{data=labeledPredictionResponse}  "created"
// @Success      200   {object}  Response{data=labeledPredictionResponse}  "updated or kept"
// @Failure      400   {object}  Response
// @Failure      401   {object}  Response
// @Router       /v2/predict [post]
func (h *PredictionHandler) SubmitLabeled(c echo.Context) error {
	uid, err := ctxUID(c)
	if err != nil {
		return err
	}

	var req labeledPredictionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.SubmitLabeled(c.Request().Context(), ports.LabeledPredictionInput{
		UserID:          uid,
		Category:        req.Category,
		Character:       req.Character,
		ConfidenceScore: *req.ConfidenceScore,
		Result:          req.Result,
		Suggestion:      req.Suggestion,
	})
	if err != nil {
		metrics.PredictionErrorsTotal.WithLabelValues(failureReason(err)).Inc()
		return err
	}

	metrics.PredictionsTotal.WithLabelValues("labeled", string(res.Outcome)).Inc()

	p := res.Prediction
	body := labeledPredictionResponse{
		ID:              p.ID,
		Category:        p.Category,
		Character:       p.Character,
		ConfidenceScore: p.ConfidenceScore,
		SubmittedScore:  res.SubmittedScore,
		Result:          p.Result,
		Suggestion:      p.Suggestion,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}

	switch res.Outcome {
	case domain.OutcomeCreated:
		return success(c, http.StatusCreated, "Prediction created", body)
	case domain.OutcomeUpdated:
		return success(c, http.StatusOK, "Prediction updated", body)
	default:
		return success(c, http.StatusOK, "Existing prediction kept, submitted score is not higher", body)
	}
}

// Histories lists stored predictions, scoped to the caller when authenticated.
//
// @Summary      List prediction histories
// @Tags         predictions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Response{data=[]historyEntry}
// @Failure      401  {object}  Response
// @Failure      500  {object}  Response
// @Router       /predict/histories [get]
func (h *PredictionHandler) Histories(c echo.Context) error {
	items, err := h.service.Histories(c.Request().Context(), optionalUID(c))
	if err != nil {
		return err
	}

	out := make([]historyEntry, 0, len(items))
	for _, p := range items {
		out = append(out, historyEntry{
			ID: p.ID,
			History: historyItem{
				ID:         p.ID,
				Result:     p.Result,
				Suggestion: p.Suggestion,
				CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339Nano),
			},
		})
	}
	return success(c, http.StatusOK, "", out)
}

// readImage accepts either a multipart "image" file or a JSON body with a
// base64 "image" field. Oversized images are rejected before decoding.
func readImage(c echo.Context) ([]byte, error) {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		fh, err := c.FormFile("image")
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "image is required")
		}
		if fh.Size > domain.MaxImageBytes {
			return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, MsgPayloadTooLarge).SetInternal(domain.ErrPayloadTooLarge)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "image is unreadable").SetInternal(err)
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, domain.MaxImageBytes+1))
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "image is unreadable").SetInternal(err)
		}
		return data, nil
	}

	var req predictImageRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// Strip an optional data URL prefix such as "data:image/png;base64,".
	encoded := req.Image
	if i := strings.Index(encoded, ","); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+1:]
	}
	if base64.StdEncoding.DecodedLen(len(encoded)) > domain.MaxImageBytes+2 {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, MsgPayloadTooLarge).SetInternal(domain.ErrPayloadTooLarge)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "image must be base64 encoded").SetInternal(err)
	}
	return data, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidImage):
		return "invalid_image"
	case errors.Is(err, domain.ErrModelOutput):
		return "model_output"
	case errors.Is(err, domain.ErrUnknownCategory):
		return "unknown_category"
	default:
		return "internal"
	}
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
