// Package mcp exposes the mind-map generator and its study aids as MCP
// tools over stdio.
//
// Tools:
//   - generate_mind_map: run the generation workflow for a topic
//   - suggested_topics: list the suggested topic catalog
//   - preparation_tips: preparation tips for a topic
//   - generate_mcq: practice questions for a topic
package mcp
