package studyaids

import (
	"encoding/json"
	"fmt"
	"strings"
)

func tipsPrompt(topic string) string {
	return fmt.Sprintf(`Provide 5 concise UPSC preparation tips for the topic '%s'.
Include:
1. Key areas to focus
2. Important current affairs angles
3. Answer writing approach
4. Common mistakes to avoid
5. Recommended study resources

Format as a JSON array of tip objects with 'title' and 'description'.`, topic)
}

const mcqFormat = `Return a JSON array where each MCQ has:
- question: the question text%s
- options: array of 4 options (a, b, c, d format%s)
- answer: the correct option%s
- explanation: brief explanation%s`

func mcqPrompt(topic string, refs []json.RawMessage) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate 5 UPSC-style MCQs for the topic '%s'.\n\n", topic)
	b.WriteString("Ensure a minimum of 2 questions have a unique format (e.g., factual, analytical, current affairs-based, or case-study style).\n\n")

	if len(refs) == 0 {
		fmt.Fprintf(&b, mcqFormat, "", "", "", "")
		b.WriteString("\n\nMake them similar to UPSC prelims questions.")
		return b.String(), nil
	}

	sample, err := json.MarshalIndent(refs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode reference questions: %w", err)
	}
	b.WriteString("Use these reference questions as style guide:\n")
	b.Write(sample)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, mcqFormat,
		" (similar style to references)",
		" like references",
		` (e.g., "(a) Option text")`,
		" of why the answer is correct")
	fmt.Fprintf(&b, "\n\nMake them relevant to '%s' and follow UPSC prelims format.", topic)
	return b.String(), nil
}
