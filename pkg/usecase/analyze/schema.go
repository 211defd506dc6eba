package analyze

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// responseSchema declares the exact shape the diagnostic endpoint must
// return. The same schema is sent to the endpoint (converted to a
// genai.Schema) and used locally to validate what comes back.
func responseSchema() *jsonschema.Schema {
	// The resolver requires the schema to form a strict tree, so every
	// use site gets its own node rather than sharing pointers.
	str := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "string"} }
	num := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "number"} }
	strArray := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "array", Items: str()} }
	boolean := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "boolean"} }

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"species":                str(),
			"physicalCondition":      str(),
			"mentalState":            str(),
			"mentalHealthConfidence": num(),
			"diseaseOrInjuryName":    str(),
			"severity": {
				Type: "string",
				Enum: []any{"HEALTHY", "INJURED", "CRITICAL"},
			},
			"overallConfidenceScore": num(),
			"anomalyDetected":        boolean(),
			"rescueRequired":         boolean(),
			"nearestAuthority":       str(),
			"firstAid":               str(),
			"medicalDetails": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"detectedSymptoms":      strArray(),
					"primaryDiagnosis":      str(),
					"differentialDiagnoses": strArray(),
					"pathologicalSummary":   str(),
					"treatmentRemedies":     strArray(),
					"prognosis":             str(),
					"contagionRisk": {
						Type: "string",
						Enum: []any{"LOW", "MEDIUM", "HIGH"},
					},
					"urgentActions": strArray(),
				},
				Required: []string{
					"detectedSymptoms", "primaryDiagnosis", "differentialDiagnoses",
					"pathologicalSummary", "treatmentRemedies", "prognosis",
					"contagionRisk", "urgentActions",
				},
			},
			"explanation": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"visualFeatures":        strArray(),
					"decisionReason":        str(),
					"confidenceCalculation": str(),
					"architecturalLogic":    str(),
				},
				Required: []string{
					"visualFeatures", "decisionReason",
					"confidenceCalculation", "architecturalLogic",
				},
			},
			"mlModalityMetrics": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"supervisedClassification": num(),
					"unsupervisedAnomalyScore": num(),
					"rlAgentReward":            num(),
					"vitSemanticScore":         num(),
				},
				Required: []string{
					"supervisedClassification", "unsupervisedAnomalyScore",
					"rlAgentReward", "vitSemanticScore",
				},
			},
		},
		Required: []string{
			"species", "physicalCondition", "mentalState", "mentalHealthConfidence",
			"diseaseOrInjuryName", "severity", "overallConfidenceScore",
			"anomalyDetected", "rescueRequired", "firstAid",
			"medicalDetails", "explanation", "mlModalityMetrics",
		},
	}
}

// toGenaiSchema converts a JSON Schema to the Gemini schema dialect
func toGenaiSchema(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	genaiSchema := &genai.Schema{}

	switch schema.Type {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "number", "integer":
		genaiSchema.Type = genai.TypeNumber
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	case "array":
		genaiSchema.Type = genai.TypeArray
	default:
		if schema.Type != "" {
			return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
		}
	}

	if schema.Description != "" {
		genaiSchema.Description = schema.Description
	}

	if len(schema.Enum) > 0 {
		genaiSchema.Enum = make([]string, 0, len(schema.Enum))
		for _, v := range schema.Enum {
			if s, ok := v.(string); ok {
				genaiSchema.Enum = append(genaiSchema.Enum, s)
			}
		}
	}

	if len(schema.Properties) > 0 {
		genaiSchema.Properties = make(map[string]*genai.Schema)
		for name, propSchema := range schema.Properties {
			converted, err := toGenaiSchema(propSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema",
					goerr.V("property", name))
			}
			genaiSchema.Properties[name] = converted
		}
	}

	if len(schema.Required) > 0 {
		genaiSchema.Required = schema.Required
	}

	if schema.Items != nil {
		converted, err := toGenaiSchema(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		genaiSchema.Items = converted
	}

	return genaiSchema, nil
}
