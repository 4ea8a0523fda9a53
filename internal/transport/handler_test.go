package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-herbal-inspector/internal/analyzer"
	"go-herbal-inspector/internal/config"
	"go-herbal-inspector/internal/inference/inferencetest"
	"go-herbal-inspector/internal/modelrepo"
	"go-herbal-inspector/internal/service"
	"go-herbal-inspector/internal/signature"
	"go-herbal-inspector/internal/storage"
	"go-herbal-inspector/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:     10 * time.Second,
		AnalysisTimeout:    5 * time.Second,
		MaxRequestBodySize: 8 << 20,
		MaxBatchSize:       10,
		APIKey:             "reload-key",
	}
}

type testServer struct {
	handler http.Handler
	repo    *modelrepo.Repository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loader := &inferencetest.StaticLoader[modelrepo.Snapshot]{
		Snapshots: []*modelrepo.Snapshot{{
			HerbClassifier: &inferencetest.MockClassifier{
				LabelList: []string{"ginger"},
				Scores:    []float32{1},
			},
			Statuses: []models.ModelStatus{{Name: modelrepo.SlotHerbClassifier, Loaded: true, Version: "2.0.0"}},
		}},
	}
	repo := modelrepo.NewRepository(loader, 0)
	require.NoError(t, repo.Load(context.Background()))

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	opts := analyzer.DefaultOptions()
	cfg := testConfig()
	analysis := service.NewAnalysisService(service.Dependencies{
		Classifier: analyzer.NewHerbClassifier(repo),
		Assessor:   analyzer.NewQualityAssessor(opts),
		Detector:   analyzer.NewDetector(repo, opts),
		Models:     repo,
		Signer:     signature.NewSigner("secret"),
		Uploads:    store,
	}, service.Options{MaxBatchSize: cfg.MaxBatchSize, AnalysisTimeout: cfg.AnalysisTimeout})
	modelSvc := service.NewModelService(repo, nil, nil)

	return &testServer{handler: NewHandler(analysis, modelSvc, nil, cfg), repo: repo}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 12, 12))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 180, 140, 60, 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type part struct {
	field, filename string
	data            []byte
}

func multipartRequest(t *testing.T, path string, parts []part, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(path string, payload interface{}) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAnalyze_Multipart(t *testing.T) {
	s := newTestServer(t)

	w := s.do(multipartRequest(t, "/analyze",
		[]part{{"image", "leaf.png", pngBytes(t)}},
		map[string]string{"herb_type": "ginger"},
	))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Regexp(t, `^analysis_\d{8}_\d{6}_[0-9a-f]{8}$`, resp.AnalysisID)
	assert.Equal(t, models.HerbGinger, resp.HerbPrediction.HerbType)
	assert.NotEmpty(t, resp.DigitalSignature)
	assert.Equal(t, "ginger", resp.Metadata.HerbTypeHint)
	assert.NotEmpty(t, resp.Metadata.Upload)
	assert.NotNil(t, resp.Diseases)
	assert.NotNil(t, resp.Recommendations)

	upload := httptest.NewRequest(http.MethodGet, "/uploads/"+resp.Metadata.Upload, nil)
	uw := s.do(upload)
	assert.Equal(t, http.StatusOK, uw.Code)
	assert.Equal(t, "image/png", uw.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes(t), uw.Body.Bytes())
}

func TestAnalyze_JSONBase64(t *testing.T) {
	s := newTestServer(t)
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))

	w := s.do(jsonRequest("/analyze", models.AnalyzeRequest{Image: encoded}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "png", resp.Metadata.ImageProperties.Format)
	assert.Equal(t, models.SchemaVersion, resp.Metadata.SchemaVersion)
}

func TestVerifySignature(t *testing.T) {
	s := newTestServer(t)

	w := s.do(multipartRequest(t, "/analyze", []part{{"image", "leaf.png", pngBytes(t)}}, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var analysis models.AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))

	verify := func(payload interface{}) models.VerifyResponse {
		vw := s.do(jsonRequest("/verify", payload))
		require.Equal(t, http.StatusOK, vw.Code, vw.Body.String())
		var resp models.VerifyResponse
		require.NoError(t, json.Unmarshal(vw.Body.Bytes(), &resp))
		return resp
	}

	assert.True(t, verify(analysis).Valid)

	tampered := analysis
	tampered.QualityAssessment.OverallScore = 1
	tampered.QualityAssessment.Grade = "A"
	if analysis.QualityAssessment.Grade == "A" {
		tampered.QualityAssessment.Grade = "D"
	}
	assert.False(t, verify(tampered).Valid)

	unsigned := analysis
	unsigned.DigitalSignature = ""
	assert.False(t, verify(unsigned).Valid)

	bad := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewBufferString("{"))
	bad.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, s.do(bad).Code)
}

func TestAnalyze_BadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"no image json", jsonRequest("/analyze", map[string]string{})},
		{"malformed json", func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewBufferString("{"))
			r.Header.Set("Content-Type", "application/json")
			return r
		}()},
		{"bad base64", jsonRequest("/analyze", models.AnalyzeRequest{Image: "%%%"})},
		{"corrupt image", jsonRequest("/analyze", models.AnalyzeRequest{
			Image: base64.StdEncoding.EncodeToString([]byte("nope")),
		})},
		{"missing multipart field", multipartRequest(t, "/analyze", nil, map[string]string{"herb_type": "ginger"})},
		{"disallowed extension", multipartRequest(t, "/analyze", []part{{"image", "leaf.gif", pngBytes(t)}}, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeError(t, w)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
			assert.NotEmpty(t, resp.Timestamp)
		})
	}
}

func TestClassifyAndQuality(t *testing.T) {
	s := newTestServer(t)

	w := s.do(multipartRequest(t, "/classify", []part{{"image", "a.png", pngBytes(t)}}, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var cls models.ClassifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cls))
	assert.True(t, cls.Success)
	assert.Equal(t, models.HerbGinger, cls.Prediction.HerbType)

	w = s.do(multipartRequest(t, "/quality", []part{{"image", "a.png", pngBytes(t)}}, map[string]string{"herb_type": "turmeric"}))
	require.Equal(t, http.StatusOK, w.Code)
	var q models.QualityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.True(t, q.Success)
	assert.Contains(t, []models.Grade{models.GradeA, models.GradeB, models.GradeC, models.GradeD}, q.Assessment.Grade)
}

func TestBatchAnalyze(t *testing.T) {
	s := newTestServer(t)
	valid := pngBytes(t)

	parts := []part{
		{"images", "1.png", valid},
		{"images", "2.png", valid},
		{"images", "3.png", valid},
		{"images", "4.png", []byte("broken")},
		{"images", "5.png", []byte{}},
	}
	w := s.do(multipartRequest(t, "/batch/analyze", parts, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.BatchAnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.TotalImages)
	assert.Equal(t, 3, resp.SuccessfulAnalyses)
	require.Len(t, resp.Results, 5)
	for _, r := range resp.Results[3:] {
		assert.False(t, r.Success)
		assert.NotEmpty(t, r.Error)
	}
}

func TestBatchAnalyze_Limits(t *testing.T) {
	s := newTestServer(t)

	w := s.do(multipartRequest(t, "/batch/analyze", nil, map[string]string{"x": "y"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	parts := make([]part, 11)
	for i := range parts {
		parts[i] = part{"images", "leaf.png", []byte("x")}
	}
	w = s.do(multipartRequest(t, "/batch/analyze", parts, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Message, "10")
}

func TestHealthModelsAndReload(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, service.ServiceVersion, health.Version)
	assert.False(t, health.GPUAvailable)

	w = s.do(httptest.NewRequest(http.MethodGet, "/models", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list models.ModelsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, models.SupportedHerbs, list.SupportedHerbs)

	w = s.do(httptest.NewRequest(http.MethodPost, "/models/reload", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/models/reload", nil)
	req.Header.Set("X-API-Key", "reload-key")
	w = s.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	var reload models.ReloadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reload))
	assert.Equal(t, "Models reloaded successfully", reload.Message)
}

func TestUploadsAndAnalyses_NotFound(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		path string
		want int
	}{
		{"/uploads/00000000-0000-0000-0000-000000000000.png", http.StatusNotFound},
		{"/uploads/secret.txt", http.StatusBadRequest},
		{"/analyses/analysis_missing", http.StatusNotFound},
		{"/analyses?limit=0", http.StatusBadRequest},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := s.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
			assert.False(t, decodeError(t, w).Success)
		})
	}

	w := s.do(httptest.NewRequest(http.MethodGet, "/analyses", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery_ReturnsEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.False(t, resp.Success)
	assert.NotContains(t, resp.Message, "boom")
}

func TestRequestSizeLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.MaxRequestBodySize = 64
	repo := modelrepo.NewRepository(&inferencetest.StaticLoader[modelrepo.Snapshot]{}, 0)
	opts := analyzer.DefaultOptions()
	analysis := service.NewAnalysisService(service.Dependencies{
		Classifier: analyzer.NewHerbClassifier(repo),
		Assessor:   analyzer.NewQualityAssessor(opts),
		Detector:   analyzer.NewDetector(repo, opts),
		Models:     repo,
	}, service.Options{})
	h := NewHandler(analysis, service.NewModelService(repo, nil, nil), nil, cfg)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, jsonRequest("/analyze", models.AnalyzeRequest{
		Image: base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 512)),
	}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
