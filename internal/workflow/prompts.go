package workflow

import (
	"fmt"
	"strings"
)

// Task lines open every prompt; testing.go routes canned responses on them.
const (
	taskDefinition     = "Define the following topic for a UPSC civil services aspirant."
	taskSyllabus       = "Map the following topic to the UPSC syllabus."
	taskKeyConcepts    = "List the key concepts a UPSC aspirant must know about the following topic."
	taskPreviousYear   = "Write UPSC previous-year style questions on the following topic."
	taskCurrentAffairs = "List recent current affairs connected to the following topic."
	taskGenerate       = "Build the primary branches of a UPSC mind map."
	taskReflect        = "Evaluate the UPSC relevance of this mind map."
	taskImprove        = "Improve the primary branches of a UPSC mind map."
)

var stageGuides = map[string]string{
	PrepPrelims:   "Focus on facts, definitions, constitutional articles, schemes and one-liners that suit objective questions.",
	PrepMains:     "Focus on analysis, multiple dimensions, causes and consequences, and answer-writing structure.",
	PrepInterview: "Focus on opinions, ethical angles, current debates and balanced viewpoints.",
}

// upscDimensions is the checklist every generated mind map should cover.
var upscDimensions = []string{
	"Constitutional and legal framework",
	"Government policies and schemes",
	"Historical evolution",
	"Recent developments and current affairs",
	"International comparisons",
	"Challenges and criticism",
	"Way forward and solutions",
	"Committee and commission recommendations",
}

func stageGuide(prep string) string {
	if g, ok := stageGuides[prep]; ok {
		return g
	}
	return stageGuides[PrepMains]
}

func definitionPrompt(topic string) string {
	return fmt.Sprintf(`%s
Topic: %s
Answer in 2-3 sentences of plain prose suitable for a mains answer introduction.`, taskDefinition, topic)
}

func syllabusPrompt(topic string) string {
	return fmt.Sprintf(`%s
Topic: %s
Return only a JSON object with the string keys "prelims", "mains" and "optional",
each naming the relevant paper and section.`, taskSyllabus, topic)
}

func keyConceptsPrompt(topic string) string {
	return fmt.Sprintf(`%s
Topic: %s
Return at most 8 concepts as a single comma-separated line.`, taskKeyConcepts, topic)
}

func previousYearPrompt(topic string) string {
	return fmt.Sprintf(`%s
Topic: %s
Return 4 questions, one per line, without numbering.`, taskPreviousYear, topic)
}

func currentAffairsPrompt(topic string) string {
	return fmt.Sprintf(`%s
Topic: %s
Return 4 items, one per line, without numbering.`, taskCurrentAffairs, topic)
}

func generatePrompt(s State) string {
	return fmt.Sprintf(`%s
Topic: %s
Definition: %s
Preparation stage: %s. %s

Cover these dimensions:
%s

%s`, taskGenerate, s.Topic, s.Definition, prepOrDefault(s.PreparationStage), stageGuide(s.PreparationStage),
		bulletList(upscDimensions), branchFormat)
}

func reflectPrompt(s State) string {
	return fmt.Sprintf(`%s
Topic: %s
Definition: %s
Syllabus mapping: %s
Key concepts: %d
Primary branches: %d
Previous year questions: %d

Score UPSC relevance from 1 to 10 and give one line of feedback.
Reply exactly as: SCORE: <number> | FEEDBACK: <text>`,
		taskReflect, s.Topic, s.Definition, formatMapping(s.SyllabusMapping),
		len(s.KeyConcepts), len(s.PrimaryBranches), len(s.PreviousYearQuestions))
}

func improvePrompt(s State) string {
	return fmt.Sprintf(`%s
Topic: %s
Current score: %s/10
Feedback: %s

Make the branches more specific and exam oriented: name articles, acts, schemes,
committees and recent examples.

%s`, taskImprove, s.Topic, formatScore(s.QualityScore), strings.Join(s.Feedback, "; "), branchFormat)
}

const branchFormat = `Return only a JSON array of 6 to 8 objects, each with the fields
"id" (slug), "title", "icon" (one emoji), "color" (hex like #FF6B6B),
"items" (3 to 6 short strings) and "importance" ("high", "medium" or "low").`

func prepOrDefault(prep string) string {
	if _, ok := stageGuides[prep]; ok {
		return prep
	}
	return PrepMains
}

func bulletList(items []string) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatMapping(m map[string]string) string {
	if len(m) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, k+": "+m[k])
	}
	return strings.Join(parts, "; ")
}
