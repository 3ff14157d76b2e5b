// Package workflow generates UPSC study mind maps by driving an LLM through
// a fixed graph of stages:
//
//	research -> generate -> reflect -> (improve -> reflect)* -> finalize
//
// Each stage reads the accumulated State and returns a partial Update. The
// Engine merges updates (overwrite by default, Messages appended), follows
// the transition table and asks Decide which way to leave reflect. Reflect
// counts iterations before Decide sees them and Decide finalizes once the
// count reaches 2, so a run makes at most one improve pass and two reflect
// calls whatever the score.
//
// LLM failures abort the run and are returned wrapped in *StageError.
// Responses that fail to parse are handled per stage: research and generate
// substitute fixed fallbacks, reflect substitutes a neutral score, improve
// keeps the previous branches.
package workflow
