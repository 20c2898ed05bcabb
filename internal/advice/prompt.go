package advice

import (
	"fmt"
	"strings"
)

const rules = `You are PreAid, an emergency AI health assistant.
- If NOT health-related: say "This ain't a medical emergency!" and answer briefly.
- If serious: start with ambulance warning and give immediate safe steps.
- For high-risk (CPR/choking/spinal): include strong safety warning.
- Keep it concise and actionable.
- End with the disclaimer.`

const (
	historyInstruction = "IMPORTANT: Start your response by acknowledging the connection between current symptoms and previous medical history."
	partialPromptNote  = "**Note: If you want a full analysis of your medical history, please ask the same question again.**"
	fullAnalysisNote   = "**FULL MEDICAL HISTORY ANALYSIS COMPLETED** - This response includes comprehensive analysis of your medical history."

	// QuickAnalysisNote is added to advice answered from a partial history.
	QuickAnalysisNote = "**📋 Quick Analysis:** If you want a full analysis of your medical history, please ask the same question again."

	disclaimerMarker = "⚠️ **Disclaimer:**"
)

// BuildPrompt renders the primary prompt for req.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(rules)
	fmt.Fprintf(&b, "\n\nQuestion: %q", req.Message)

	if len(req.History) > 0 {
		items := make([]string, len(req.History))
		for i, h := range req.History {
			items[i] = fmt.Sprintf("%q (%s)", h.Issue, h.TimeAgo)
		}
		b.WriteString("\n\nMEDICAL HISTORY CONTEXT: ")
		b.WriteString(strings.Join(items, ", "))
		b.WriteString("\n\n")
		b.WriteString(historyInstruction)
	}

	switch {
	case req.IsFullAnalysisRequest:
		b.WriteString("\n\n")
		b.WriteString(fullAnalysisNote)
	case req.IsPartialHistory:
		b.WriteString("\n\n")
		b.WriteString(partialPromptNote)
	}

	return b.String()
}

// BuildDetailedPrompt renders the prompt used when the first answer is too short.
func BuildDetailedPrompt(message string) string {
	return fmt.Sprintf(`You are PreAid, an AI health assistant. Provide comprehensive first aid advice for: %q.
- Include step-by-step instructions
- Add emergency warnings if necessary
- Provide 6-10 actionable points
- End with the medical disclaimer`, message)
}

// withQuickAnalysisNote places QuickAnalysisNote before the last disclaimer,
// or at the end when there is none.
func withQuickAnalysisNote(advice string) string {
	if strings.Contains(advice, "full analysis") {
		return advice
	}
	if i := strings.LastIndex(advice, disclaimerMarker); i >= 0 {
		return advice[:i] + "\n\n" + QuickAnalysisNote + "\n\n" + advice[i:]
	}
	return advice + "\n\n" + QuickAnalysisNote
}
