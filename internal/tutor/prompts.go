package tutor

import (
	"fmt"

	"github.com/atinyakov/feynmind/internal/models"
)

// maxSourceChars bounds the document text sent for topic extraction.
const maxSourceChars = 5000

const topicsInstruction = "You are a study assistant. Extract the 5 most important concepts from the text below. " +
	"Return them strictly as a JSON list of strings (e.g. [\"Concept 1\", \"Concept 2\"]). " +
	"Do not add markdown formatting."

var personas = map[models.Difficulty]string{
	models.Easy: "You are a gentle, encouraging tutor teaching a beginner. Use simple language (ELIF5), " +
		"avoid jargon, and focus on the big picture. If they are close, give them credit.",
	models.Medium: "You are a helpful study assistant. Verify accuracy and correct mistakes clearly, " +
		"but keep the conversation flowing naturally.",
	models.Hard: "You are a strict, Socratic professor at a top university. Challenge the user's assumptions, " +
		"demand precise terminology, and point out even small logical flaws.",
}

var analogyStyles = map[models.Difficulty]string{
	models.Easy:   "Use a very simple, real-world analogy (like cooking, sports, or simple machines) that a 10-year-old could understand.",
	models.Medium: "Use a standard, relatable analogy suitable for a college student.",
	models.Hard:   "Use a sophisticated, abstract, or technical analogy suitable for an expert or graduate student.",
}

// level maps unknown or empty difficulties to medium.
func level(d models.Difficulty) models.Difficulty {
	if _, ok := personas[d]; ok {
		return d
	}
	return models.Medium
}

func topicsPrompt(text string) string {
	return topicsInstruction + " Text: " + truncate(text, maxSourceChars)
}

func gradingPrompt(concept, explanation string, d models.Difficulty) string {
	return fmt.Sprintf("%s\n\nConcept: %s\nStudent Explanation: %s\n\nProvide feedback on their explanation.",
		personas[level(d)], concept, explanation)
}

func analogyPrompt(concept string, d models.Difficulty) string {
	return fmt.Sprintf("Give a creative analogy to explain the concept: %s.\n%s\nKeep it concise.",
		concept, analogyStyles[level(d)])
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
