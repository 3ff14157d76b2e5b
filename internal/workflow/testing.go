package workflow

import (
	"fmt"

	"github.com/fyrsmithlabs/mindmapd/internal/llm"
)

// Canned responses used by NewFixtureCompleter.
const (
	FixtureDefinition = "Fundamental Rights are the basic rights guaranteed by Part III of the Constitution of India, enforceable by the courts."
	FixtureSyllabus   = `{"prelims": "Indian Polity", "mains": "GS Paper II", "optional": "Political Science"}`
	FixtureConcepts   = "Article 12, Article 13, Right to Equality, Right to Freedom, Writs"
	FixturePYQs       = "Discuss the scope of Article 21.\nExplain the doctrine of eclipse."
	FixtureAffairs    = "Right to privacy judgment\nElectoral bonds verdict"
	FixtureBranches   = `[{"id":"constitutional","title":"Constitutional Basis","icon":"📜","color":"#FF6B6B","items":["Part III","Articles 12-35"],"importance":"high"},{"id":"judiciary","title":"Judicial Interpretation","icon":"⚖️","color":"#45B7D1","items":["Kesavananda Bharati","Maneka Gandhi"],"importance":"high"}]`
	FixtureImproved   = `[{"id":"writs","title":"Writ Jurisdiction","icon":"🧾","color":"#96CEB4","items":["Article 32","Article 226"],"importance":"high"}]`
)

// NewFixtureCompleter returns a scripted completer that answers every
// workflow prompt with a minimal valid response. Reflect prompts get the
// given replies in order, the last one repeating.
func NewFixtureCompleter(reflectReplies ...string) *llm.Scripted {
	if len(reflectReplies) == 0 {
		reflectReplies = []string{FixtureReflect(8.0)}
	}
	return llm.NewScripted("").
		On(taskDefinition, FixtureDefinition).
		On(taskSyllabus, FixtureSyllabus).
		On(taskKeyConcepts, FixtureConcepts).
		On(taskPreviousYear, FixturePYQs).
		On(taskCurrentAffairs, FixtureAffairs).
		On(taskGenerate, FixtureBranches).
		On(taskImprove, FixtureImproved).
		On(taskReflect, reflectReplies...)
}

// FixtureReflect formats a well-formed reflect reply.
func FixtureReflect(score float64) string {
	return fmt.Sprintf("SCORE: %s | FEEDBACK: Covers the constitutional basis well", formatScore(score))
}
