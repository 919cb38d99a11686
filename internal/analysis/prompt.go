package analysis

import "fmt"

// promptTemplate is the fixed instruction sent for every analysis. The six
// numbered sections are part of the product contract; downstream display
// treats the response as opaque prose.
const promptTemplate = `Analyze this patient transcript:
%s

Provide:
1. Summary
2. Symptoms/concerns
3. Recommended specialist
4. Urgency level
5. Recommendations
6. First-aid advice if urgent`

// SectionLabels lists the six sections every analysis prompt requests.
var SectionLabels = []string{
	"Summary",
	"Symptoms/concerns",
	"Recommended specialist",
	"Urgency level",
	"Recommendations",
	"First-aid advice",
}

// BuildPrompt embeds the transcript verbatim in the instruction template.
func BuildPrompt(transcript string) string {
	return fmt.Sprintf(promptTemplate, transcript)
}
