package analyze

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/vetscan/vetscan/pkg/adapter"
	"github.com/vetscan/vetscan/pkg/model"
	"github.com/vetscan/vetscan/pkg/utils/logging"
	"google.golang.org/genai"
)

// UseCase performs one-shot diagnostic requests against the inference
// endpoint. It never touches the history; "analyze then persist" is a
// two-step protocol composed by the caller.
type UseCase struct {
	gemini adapter.Gemini

	genaiSchema *genai.Schema
	validator   *jsonschema.Resolved
}

// New creates an analyze UseCase. The response schema is resolved once
// here and shared by all requests.
func New(gemini adapter.Gemini) (*UseCase, error) {
	schema := responseSchema()

	genaiSchema, err := toGenaiSchema(schema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build response schema")
	}

	validator, err := schema.Resolve(nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve response schema")
	}

	return &UseCase{
		gemini:      gemini,
		genaiSchema: genaiSchema,
		validator:   validator,
	}, nil
}

// payload is the wire shape of a diagnostic response, before the result
// identity (id, timestamp, citations, location) is stamped on.
type payload struct {
	Species                string                `json:"species"`
	PhysicalCondition      string                `json:"physicalCondition"`
	MentalState            string                `json:"mentalState"`
	MentalHealthConfidence float64               `json:"mentalHealthConfidence"`
	DiseaseOrInjuryName    string                `json:"diseaseOrInjuryName"`
	Severity               model.Severity        `json:"severity"`
	OverallConfidenceScore float64               `json:"overallConfidenceScore"`
	AnomalyDetected        bool                  `json:"anomalyDetected"`
	RescueRequired         bool                  `json:"rescueRequired"`
	NearestAuthority       string                `json:"nearestAuthority"`
	FirstAid               string                `json:"firstAid"`
	MedicalDetails         model.MedicalDetails  `json:"medicalDetails"`
	Explanation            model.Explanation     `json:"explanation"`
	Metrics                model.ModalityMetrics `json:"mlModalityMetrics"`
}

// Analyze sends one image to the diagnostic endpoint and assembles the
// validated response into an AnalysisResult. Transport failures map to
// model.ErrInferenceUnavailable, schema violations to
// model.ErrMalformedResponse.
func (u *UseCase) Analyze(ctx context.Context, imageJPEG []byte, loc *model.Coordinates) (*model.AnalysisResult, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(imageJPEG, "image/jpeg"),
			genai.NewPartFromText(buildPrompt(loc)),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    u.genaiSchema,
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}

	resp, err := u.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(model.ErrInferenceUnavailable, "diagnostic request failed", goerr.V("cause", err))
	}

	body := responseText(resp)
	if body == "" {
		return nil, goerr.Wrap(model.ErrMalformedResponse, "empty response body")
	}

	result, err := u.parse(body)
	if err != nil {
		return nil, err
	}

	result.ID = model.NewResultID()
	result.CreatedAt = time.Now()
	result.GroundingLinks = groundingLinks(resp)
	result.Location = loc

	logging.From(ctx).Info("analysis complete",
		"id", result.ID,
		"species", result.Species,
		"severity", result.Severity,
		"confidence", result.OverallConfidenceScore,
	)

	return result, nil
}

// parse validates the response body against the declared schema and
// decodes it. Any deviation from the schema is a MalformedResponse.
func (u *UseCase) parse(body string) (*model.AnalysisResult, error) {
	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, goerr.Wrap(model.ErrMalformedResponse, "response is not valid JSON", goerr.V("cause", err))
	}

	if err := u.validator.Validate(decoded); err != nil {
		return nil, goerr.Wrap(model.ErrMalformedResponse, "response violates schema", goerr.V("cause", err))
	}

	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, goerr.Wrap(model.ErrMalformedResponse, "failed to decode response", goerr.V("cause", err))
	}

	return &model.AnalysisResult{
		Species:                p.Species,
		PhysicalCondition:      p.PhysicalCondition,
		MentalState:            p.MentalState,
		MentalHealthConfidence: p.MentalHealthConfidence,
		DiseaseOrInjuryName:    p.DiseaseOrInjuryName,
		Severity:               p.Severity,
		OverallConfidenceScore: p.OverallConfidenceScore,
		AnomalyDetected:        p.AnomalyDetected,
		RescueRequired:         p.RescueRequired,
		NearestAuthority:       p.NearestAuthority,
		FirstAid:               p.FirstAid,
		MedicalDetails:         p.MedicalDetails,
		Explanation:            p.Explanation,
		Metrics:                p.Metrics,
	}, nil
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text
}

// groundingLinks extracts web citations the endpoint attached post-hoc
func groundingLinks(resp *genai.GenerateContentResponse) []model.GroundingLink {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}

	var links []model.GroundingLink
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk.Web == nil {
			continue
		}
		links = append(links, model.GroundingLink{
			Title: chunk.Web.Title,
			URI:   chunk.Web.URI,
		})
	}
	return links
}
