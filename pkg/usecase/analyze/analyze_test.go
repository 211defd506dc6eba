package analyze_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/vetscan/vetscan/pkg/adapter"
	"github.com/vetscan/vetscan/pkg/model"
	"github.com/vetscan/vetscan/pkg/usecase/analyze"
	"google.golang.org/genai"
)

// mockGemini is a mock implementation of adapter.Gemini for testing
type mockGemini struct {
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.lastContents = contents
	m.lastConfig = config
	if m.generateFunc != nil {
		return m.generateFunc(ctx, contents, config)
	}
	return nil, errors.New("not implemented")
}

func (m *mockGemini) CreateChat(ctx context.Context, config *genai.GenerateContentConfig, history []*genai.Content) (*genai.Chat, error) {
	return nil, errors.New("not implemented")
}

func (m *mockGemini) ConnectLive(ctx context.Context, config *genai.LiveConnectConfig) (adapter.LiveSession, error) {
	return nil, errors.New("not implemented")
}

func textResponse(body string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(body, genai.RoleModel)},
		},
	}
}

// validPayload returns a response body that satisfies the declared schema
func validPayload() map[string]any {
	return map[string]any{
		"species":                "dog",
		"physicalCondition":      "limping on the right hind leg",
		"mentalState":            "distressed",
		"mentalHealthConfidence": 0.8,
		"diseaseOrInjuryName":    "tibial fracture",
		"severity":               "INJURED",
		"overallConfidenceScore": 0.91,
		"anomalyDetected":        true,
		"rescueRequired":         true,
		"nearestAuthority":       "City Animal Control",
		"firstAid":               "Immobilize the leg and keep the animal calm.",
		"medicalDetails": map[string]any{
			"detectedSymptoms":      []any{"limping", "swelling"},
			"primaryDiagnosis":      "tibial fracture",
			"differentialDiagnoses": []any{"sprain", "ligament tear"},
			"pathologicalSummary":   "Closed fracture of the tibia with local swelling.",
			"treatmentRemedies":     []any{"splint", "analgesics"},
			"prognosis":             "Good with treatment.",
			"contagionRisk":         "LOW",
			"urgentActions":         []any{"transport to clinic"},
		},
		"explanation": map[string]any{
			"visualFeatures":        []any{"abnormal gait", "swollen joint"},
			"decisionReason":        "Posture and swelling indicate a fracture.",
			"confidenceCalculation": "ensemble vote",
			"architecturalLogic":    "vision ensemble",
		},
		"mlModalityMetrics": map[string]any{
			"supervisedClassification": 0.93,
			"unsupervisedAnomalyScore": 0.4,
			"rlAgentReward":            0.7,
			"vitSemanticScore":         0.88,
		},
	}
}

func marshalPayload(t *testing.T, payload map[string]any) string {
	t.Helper()
	data, err := json.Marshal(payload)
	gt.NoError(t, err)
	return string(data)
}

func TestAnalyzeSuccess(t *testing.T) {
	ctx := context.Background()
	body := marshalPayload(t, validPayload())

	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			resp := textResponse(body)
			resp.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{Title: "WSAVA fracture guide", URI: "https://example.com/fracture"}},
					{},
				},
			}
			return resp, nil
		},
	}

	uc, err := analyze.New(gemini)
	gt.NoError(t, err)

	loc := &model.Coordinates{Latitude: 35.68, Longitude: 139.76}
	result, err := uc.Analyze(ctx, []byte{0xff, 0xd8, 0xff}, loc)
	gt.NoError(t, err)

	gt.Value(t, string(result.ID) != "").Equal(true)
	gt.Value(t, result.CreatedAt.IsZero()).Equal(false)
	gt.Value(t, result.Species).Equal("dog")
	gt.Value(t, result.Severity).Equal(model.SeverityInjured)
	gt.Value(t, result.MedicalDetails.ContagionRisk).Equal(model.ContagionRiskLow)
	gt.Value(t, result.Metrics.ViTSemanticScore).Equal(0.88)
	gt.Number(t, len(result.GroundingLinks)).Equal(1)
	gt.Value(t, result.GroundingLinks[0].URI).Equal("https://example.com/fracture")
	gt.Value(t, result.Location).Equal(loc)

	// The request must declare a strict JSON response
	gt.Value(t, gemini.lastConfig.ResponseMIMEType).Equal("application/json")
	gt.Value(t, gemini.lastConfig.ResponseSchema != nil).Equal(true)
	gt.Number(t, len(gemini.lastConfig.Tools)).Equal(1)
}

func TestAnalyzeMissingRequiredField(t *testing.T) {
	ctx := context.Background()

	payload := validPayload()
	delete(payload, "severity")
	body := marshalPayload(t, payload)

	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(body), nil
		},
	}

	uc, err := analyze.New(gemini)
	gt.NoError(t, err)

	_, err = uc.Analyze(ctx, []byte{0xff, 0xd8, 0xff}, nil)
	gt.Error(t, err)
	gt.Value(t, errors.Is(err, model.ErrMalformedResponse)).Equal(true)
}

func TestAnalyzeInvalidJSON(t *testing.T) {
	ctx := context.Background()

	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("{definitely not json"), nil
		},
	}

	uc, err := analyze.New(gemini)
	gt.NoError(t, err)

	_, err = uc.Analyze(ctx, []byte{0xff, 0xd8, 0xff}, nil)
	gt.Error(t, err)
	gt.Value(t, errors.Is(err, model.ErrMalformedResponse)).Equal(true)
}

func TestAnalyzeInvalidEnum(t *testing.T) {
	ctx := context.Background()

	payload := validPayload()
	payload["severity"] = "DECEASED"
	body := marshalPayload(t, payload)

	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(body), nil
		},
	}

	uc, err := analyze.New(gemini)
	gt.NoError(t, err)

	_, err = uc.Analyze(ctx, []byte{0xff, 0xd8, 0xff}, nil)
	gt.Error(t, err)
	gt.Value(t, errors.Is(err, model.ErrMalformedResponse)).Equal(true)
}

func TestAnalyzeTransportFailure(t *testing.T) {
	ctx := context.Background()

	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("connection refused")
		},
	}

	uc, err := analyze.New(gemini)
	gt.NoError(t, err)

	_, err = uc.Analyze(ctx, []byte{0xff, 0xd8, 0xff}, nil)
	gt.Error(t, err)
	gt.Value(t, errors.Is(err, model.ErrInferenceUnavailable)).Equal(true)
}

func TestAnalyzeEmptyResponse(t *testing.T) {
	ctx := context.Background()

	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return &genai.GenerateContentResponse{}, nil
		},
	}

	uc, err := analyze.New(gemini)
	gt.NoError(t, err)

	_, err = uc.Analyze(ctx, []byte{0xff, 0xd8, 0xff}, nil)
	gt.Error(t, err)
	gt.Value(t, errors.Is(err, model.ErrMalformedResponse)).Equal(true)
}
