package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kakitori/kakitori-api/internal/api/handler"
	"github.com/kakitori/kakitori-api/internal/api/middleware"
	"github.com/kakitori/kakitori-api/internal/core/ports"
	"github.com/kakitori/kakitori-api/internal/core/service"
	"github.com/kakitori/kakitori-api/internal/infrastructure/db/memory"
	"github.com/kakitori/kakitori-api/internal/infrastructure/db/repository"
	"github.com/kakitori/kakitori-api/internal/infrastructure/http/handlers"
	"github.com/kakitori/kakitori-api/internal/infrastructure/queue"
)

// fakeModel always favours the last label.
type fakeModel struct{}

func (fakeModel) Predict(context.Context, ports.Tensor) ([]float32, error) {
	return []float32{0.05, 0.15, 0.8}, nil
}

func (fakeModel) Ping(context.Context) error { return nil }

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *echo.Echo {
	t.Helper()
	return newTestRouterWithTTL(t, time.Hour)
}

func newTestRouterWithTTL(t *testing.T, tokenTTL time.Duration) *echo.Echo {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := zerolog.Nop()
	store := memory.NewStore()
	dispatcher := queue.NewDispatcher(4, log)
	dispatcher.Start(ctx)

	tokens := service.NewTokenIssuer("router-test-secret", tokenTTL)
	predictions := repository.NewPredictionRepository(store)
	progress := service.NewProgressService(predictions, nil, log)

	return NewRouter(Deps{
		Auth:   service.NewAuthService(repository.NewUserRepository(store), tokens, log),
		Tokens: tokens,
		Predictions: service.NewPredictionService(
			predictions, service.NewClassificationService(fakeModel{}, log), progress, nil, dispatcher, log,
		),
		Progress:      progress,
		Readiness:     map[string]handlers.Pinger{"store": store, "model": fakeModel{}},
		Log:           log,
		TokenTTL:      time.Hour,
		AuthRateLimit: 1000,
		Registry:      prometheus.NewRegistry(),
	})
}

func do(t *testing.T, e *echo.Echo, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func jsonReq(method, path, body, token string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := 4; i < 28; i++ {
		img.SetGray(i, 16, color.Gray{Y: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func register(t *testing.T, e *echo.Echo, email string) {
	t.Helper()
	body := `{"email":"` + email + `","password":"secret1","confirmPassword":"secret1","fullName":"Kana"}`
	rec, _ := do(t, e, jsonReq(http.MethodPost, "/register", body, ""))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func login(t *testing.T, e *echo.Echo, email string) (string, *http.Cookie) {
	t.Helper()
	rec, env := do(t, e, jsonReq(http.MethodPost, "/login", `{"email":"`+email+`","password":"secret1"}`, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)

	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.TokenCookie {
			return data.Token, c
		}
	}
	t.Fatalf("login did not set the %s cookie", middleware.TokenCookie)
	return "", nil
}

func TestRouter_AuthFlow(t *testing.T) {
	e := newTestRouter(t)

	register(t, e, "kana@example.com")

	rec, env := do(t, e, jsonReq(http.MethodPost, "/register",
		`{"email":"kana@example.com","password":"secret1","confirmPassword":"secret1","fullName":"Kana"}`, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "fail", env.Status)
	assert.Equal(t, "Email is already registered", env.Message)

	rec, env = do(t, e, jsonReq(http.MethodPost, "/login", `{"email":"kana@example.com","password":"wrong-pass"}`, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid email or password", env.Message)

	token, cookie := login(t, e, "kana@example.com")

	rec, env = do(t, e, jsonReq(http.MethodGet, "/account", "", token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"fullName":"Kana","email":"kana@example.com"}`, string(env.Data))

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.AddCookie(cookie)
	rec, _ = do(t, e, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, e, jsonReq(http.MethodGet, "/account", "", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token not provided", env.Message)

	rec, env = do(t, e, jsonReq(http.MethodGet, "/account", "", "not-a-jwt"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", env.Message)
}

func TestRouter_ExpiredTokenRejected(t *testing.T) {
	e := newTestRouterWithTTL(t, time.Millisecond)
	register(t, e, "kana@example.com")
	token, cookie := login(t, e, "kana@example.com")

	// Expiry is encoded with one-second precision.
	time.Sleep(1100 * time.Millisecond)

	rec, env := do(t, e, jsonReq(http.MethodGet, "/account", "", token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", env.Message)

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.AddCookie(cookie)
	rec, env = do(t, e, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", env.Message)

	rec, _ = do(t, e, jsonReq(http.MethodPost, "/v2/predict",
		`{"category":"hiragana","character":"あ","confidenceScore":50}`, token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_LabeledPredictionsAndProgress(t *testing.T) {
	e := newTestRouter(t)
	register(t, e, "kana@example.com")
	token, _ := login(t, e, "kana@example.com")

	submit := func(score string) (*httptest.ResponseRecorder, envelope) {
		return do(t, e, jsonReq(http.MethodPost, "/v2/predict",
			`{"category":"hiragana","character":"あ","confidenceScore":`+score+`}`, token))
	}

	rec, env := submit("60")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Prediction created", env.Message)

	rec, env = submit("40")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Existing prediction kept, submitted score is not higher", env.Message)

	rec, env = submit("90")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Prediction updated", env.Message)
	var updated struct {
		ConfidenceScore float64 `json:"confidenceScore"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, 90.0, updated.ConfidenceScore)

	rec, _ = do(t, e, jsonReq(http.MethodPost, "/v2/predict", `{"category":"hiragana","character":"あ","confidenceScore":90}`, ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = do(t, e, jsonReq(http.MethodGet, "/progress", "", token))
	require.Equal(t, http.StatusOK, rec.Code)
	var progress []struct {
		Category            string  `json:"category"`
		CompletedCharacters int     `json:"completedCharacters"`
		Percentage          float64 `json:"percentage"`
		IsComplete          bool    `json:"isComplete"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &progress))
	require.Len(t, progress, 3)
	assert.Equal(t, "hiragana", progress[0].Category)
	assert.Equal(t, 1, progress[0].CompletedCharacters)
	assert.Equal(t, 2.17, progress[0].Percentage)
	assert.False(t, progress[0].IsComplete)

	rec, env = do(t, e, jsonReq(http.MethodGet, "/predict/histories", "", token))
	require.Equal(t, http.StatusOK, rec.Code)
	var histories []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &histories))
	assert.Len(t, histories, 1)
}

func TestRouter_PredictImage(t *testing.T) {
	e := newTestRouter(t)
	register(t, e, "kana@example.com")
	token, _ := login(t, e, "kana@example.com")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "seven.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec, env := do(t, e, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Model is predicted successfully", env.Message)

	var pred struct {
		ID              string  `json:"id"`
		Result          string  `json:"result"`
		ConfidenceScore float64 `json:"confidenceScore"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pred))
	assert.Equal(t, "七", pred.Result)
	assert.InDelta(t, 80.0, pred.ConfidenceScore, 0.001)

	rec, env = do(t, e, jsonReq(http.MethodPost, "/predict", `{"image":"not base64!"}`, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "fail", env.Status)

	// Anonymous callers see every stored prediction; the owner sees theirs.
	rec, env = do(t, e, jsonReq(http.MethodGet, "/predict/histories", "", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	var histories []struct {
		ID      string `json:"id"`
		History struct {
			Result string `json:"result"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &histories))
	require.Len(t, histories, 1)
	assert.Equal(t, pred.ID, histories[0].ID)
	assert.Equal(t, "七", histories[0].History.Result)
}

func TestRouter_OversizedBody(t *testing.T) {
	e := newTestRouter(t)

	body := `{"image":"` + strings.Repeat("A", 3<<20) + `"}`
	rec, env := do(t, e, jsonReq(http.MethodPost, "/predict", body, ""))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "fail", env.Status)
	assert.Equal(t, handler.MsgPayloadTooLarge, env.Message)

	body = `{"email":"a@b.co","password":"secret1","confirmPassword":"secret1","fullName":"` + strings.Repeat("K", 3<<20) + `"}`
	rec, env = do(t, e, jsonReq(http.MethodPost, "/register", body, ""))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request body too large", env.Message)
}

func TestRouter_HealthAndOps(t *testing.T) {
	e := newTestRouter(t)

	rec, _ := do(t, e, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		SecurityDefinitions map[string]struct {
			Type string `json:"type"`
			Name string `json:"name"`
			In   string `json:"in"`
		} `json:"securityDefinitions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	bearer, ok := doc.SecurityDefinitions["BearerAuth"]
	require.True(t, ok, "BearerAuth security scheme must be documented")
	assert.Equal(t, "apiKey", bearer.Type)
	assert.Equal(t, "Authorization", bearer.Name)
	assert.Equal(t, "header", bearer.In)
}
