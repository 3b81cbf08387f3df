package ai

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/job_extraction.md
var extractionPromptRaw string

// extractionTemplate is the parsed prompt template for job extraction.
// Parsed once at package init; reused on every Extract call.
var extractionTemplate = template.Must(template.New("job_extraction").Parse(extractionPromptRaw))
