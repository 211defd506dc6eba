package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type ResultID string

// NewResultID generates a new unique ResultID
func NewResultID() ResultID {
	return ResultID(uuid.New().String())
}

type Severity string

const (
	SeverityHealthy  Severity = "HEALTHY"
	SeverityInjured  Severity = "INJURED"
	SeverityCritical Severity = "CRITICAL"
)

// Validate checks if the severity is valid
func (s Severity) Validate() error {
	switch s {
	case SeverityHealthy, SeverityInjured, SeverityCritical:
		return nil
	default:
		return goerr.Wrap(ErrMalformedResponse, "invalid severity", goerr.V("severity", s))
	}
}

type ContagionRisk string

const (
	ContagionRiskLow    ContagionRisk = "LOW"
	ContagionRiskMedium ContagionRisk = "MEDIUM"
	ContagionRiskHigh   ContagionRisk = "HIGH"
)

// Validate checks if the contagion risk is valid
func (c ContagionRisk) Validate() error {
	switch c {
	case ContagionRiskLow, ContagionRiskMedium, ContagionRiskHigh:
		return nil
	default:
		return goerr.Wrap(ErrMalformedResponse, "invalid contagion risk", goerr.V("risk", c))
	}
}

// Coordinates is a latitude/longitude pair attached to a result at
// creation time.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MedicalDetails holds the structured clinical block of a diagnosis.
type MedicalDetails struct {
	DetectedSymptoms      []string      `json:"detectedSymptoms"`
	PrimaryDiagnosis      string        `json:"primaryDiagnosis"`
	DifferentialDiagnoses []string      `json:"differentialDiagnoses"`
	PathologicalSummary   string        `json:"pathologicalSummary"`
	TreatmentRemedies     []string      `json:"treatmentRemedies"`
	Prognosis             string        `json:"prognosis"`
	ContagionRisk         ContagionRisk `json:"contagionRisk"`
	UrgentActions         []string      `json:"urgentActions"`
}

// Explanation describes how the model reached its conclusion.
type Explanation struct {
	VisualFeatures        []string `json:"visualFeatures"`
	DecisionReason        string   `json:"decisionReason"`
	ConfidenceCalculation string   `json:"confidenceCalculation"`
	ArchitecturalLogic    string   `json:"architecturalLogic"`
}

// ModalityMetrics holds per-submodel confidence scores, each in [0,1].
type ModalityMetrics struct {
	SupervisedClassification float64 `json:"supervisedClassification"`
	UnsupervisedAnomalyScore float64 `json:"unsupervisedAnomalyScore"`
	RLAgentReward            float64 `json:"rlAgentReward"`
	ViTSemanticScore         float64 `json:"vitSemanticScore"`
}

// GroundingLink is a citation attached by the inference service.
type GroundingLink struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// AnalysisResult is a single triage diagnosis. It is immutable once
// appended to the history.
type AnalysisResult struct {
	ID        ResultID  `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	Species                string          `json:"species"`
	PhysicalCondition      string          `json:"physicalCondition"`
	MentalState            string          `json:"mentalState"`
	MentalHealthConfidence float64         `json:"mentalHealthConfidence"`
	DiseaseOrInjuryName    string          `json:"diseaseOrInjuryName"`
	Severity               Severity        `json:"severity"`
	OverallConfidenceScore float64         `json:"overallConfidenceScore"`
	AnomalyDetected        bool            `json:"anomalyDetected"`
	RescueRequired         bool            `json:"rescueRequired"`
	NearestAuthority       string          `json:"nearestAuthority,omitempty"`
	FirstAid               string          `json:"firstAid"`
	MedicalDetails         MedicalDetails  `json:"medicalDetails"`
	Explanation            Explanation     `json:"explanation"`
	Metrics                ModalityMetrics `json:"mlModalityMetrics"`

	GroundingLinks []GroundingLink `json:"groundingLinks,omitempty"`
	Location       *Coordinates    `json:"location,omitempty"`
}
