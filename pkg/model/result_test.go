package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/vetscan/vetscan/pkg/model"
)

func TestSeverityValidate(t *testing.T) {
	gt.NoError(t, model.SeverityHealthy.Validate())
	gt.NoError(t, model.SeverityInjured.Validate())
	gt.NoError(t, model.SeverityCritical.Validate())

	err := model.Severity("DECEASED").Validate()
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrMalformedResponse))
}

func TestContagionRiskValidate(t *testing.T) {
	gt.NoError(t, model.ContagionRiskLow.Validate())
	gt.NoError(t, model.ContagionRiskMedium.Validate())
	gt.NoError(t, model.ContagionRiskHigh.Validate())

	err := model.ContagionRisk("EXTREME").Validate()
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrMalformedResponse))
}

func TestAnalysisResultJSONKeys(t *testing.T) {
	result := &model.AnalysisResult{
		ID:        model.NewResultID(),
		CreatedAt: time.Now(),
		Species:   "dog",
		Severity:  model.SeverityHealthy,
	}

	data, err := json.Marshal(result)
	gt.NoError(t, err)

	var decoded map[string]any
	gt.NoError(t, json.Unmarshal(data, &decoded))

	// Key names are part of the persisted format
	for _, key := range []string{"id", "createdAt", "species", "severity", "medicalDetails", "mlModalityMetrics"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q in encoded result", key)
		}
	}

	// Absent optional fields stay out of the document
	if _, ok := decoded["location"]; ok {
		t.Error("empty location must be omitted")
	}
	if _, ok := decoded["groundingLinks"]; ok {
		t.Error("empty groundingLinks must be omitted")
	}
}

func TestNewResultIDUnique(t *testing.T) {
	a := model.NewResultID()
	b := model.NewResultID()
	gt.True(t, a != b)
	gt.True(t, string(a) != "")
}
