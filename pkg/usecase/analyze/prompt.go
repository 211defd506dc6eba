package analyze

import (
	"fmt"

	"github.com/vetscan/vetscan/pkg/model"
)

const systemPrompt = `You are the VET-AI Autonomous Diagnostic Engine, a world-class Artificial Intelligence specialized in Veterinary Pathology, Deep Learning Vision, and Clinical Remediation.

CORE CAPABILITIES:
1. PATHOLOGY: Detect 1000+ animal diseases (Viral, Bacterial, Parasitic, Fungal).
2. TRIAGE: Analyze physical trauma, internal bleeding signs, and neural distress.
3. REMEDIATION: Provide specific medical remedies, herbal/first-aid treatments, and rescue protocols.

YOUR OUTPUT MUST BE EXHAUSTIVE:
- Identify subtle visual cues (skin lesions, ocular discharge, postural guarding).
- Provide a full differential diagnosis list.
- Suggest specific remedies and treatments (Upay).`

// buildPrompt renders the per-request task prompt, including the GPS
// context line when a location is known.
func buildPrompt(loc *model.Coordinates) string {
	gps := "Unknown"
	if loc != nil {
		gps = fmt.Sprintf("Lat: %f, Long: %f", loc.Latitude, loc.Longitude)
	}

	return fmt.Sprintf(`INFERENCE REQUEST: Perform deep pathological analysis on the attached image.
GPS CONTEXT: %s.

TASKS:
1. Identify species and precise pathological condition.
2. Provide a list of all detected symptoms.
3. List the primary diagnosis and at least 2 differential diagnoses.
4. Detail a treatment plan (Remedies/Upay) including immediate first aid and long-term care.
5. Assess contagion risk and prognosis.`, gps)
}
