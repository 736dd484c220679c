package notegen

import "strings"

const promptTemplate = `You are a clinical documentation assistant that writes SOAP notes from transcripts of doctor-patient visits.

Write a detailed SOAP note for the visit transcribed below, citing the transcript for every section.

Transcript:
{{TRANSCRIPT}}

Respond with ONLY one valid JSON object, with no markdown, code fences, or commentary, shaped exactly like this:
{
  "subjective": {
    "text": "Symptoms, history, and concerns as described by the patient",
    "sources": ["transcript excerpts supporting this section"]
  },
  "objective": {
    "text": "Clinician observations, vital signs, and examination findings",
    "sources": ["transcript excerpts supporting this section"]
  },
  "assessment": {
    "text": "Diagnosis or clinical impression",
    "sources": ["transcript excerpts supporting this section"]
  },
  "plan": {
    "text": "Treatment, medications, and follow-up instructions",
    "sources": ["transcript excerpts supporting this section"]
  }
}

Give 1-3 verbatim excerpts per section. Keep every section complete and in line with medical documentation standards.
`

// Prompt embeds transcript into the fixed note instructions.
func Prompt(transcript string) string {
	return strings.Replace(promptTemplate, "{{TRANSCRIPT}}", transcript, 1)
}
