package studybuddy

import (
	"fmt"
	"strings"
)

func writeSystemRules(sb *strings.Builder, topic string) {
	sb.WriteString("You are an expert Educational Content Creator.\n")
	sb.WriteString("Your goal is to generate high-quality study materials.\n")
	sb.WriteString("RULES:\n")
	sb.WriteString(fmt.Sprintf("1. Respond ONLY in the same language as the requested topic (%s).\n", topic))
	sb.WriteString("2. Provide detailed educational explanations.\n")
	sb.WriteString("3. Ensure the JSON is perfectly valid and uses exactly the field names listed below.\n\n")
}

// BuildPrompt returns the instruction text sent to the model for one question
func BuildPrompt(topic string, difficulty Difficulty, kind QuestionKind) string {
	var sb strings.Builder

	writeSystemRules(&sb, topic)

	switch kind {
	case KindFillBlank:
		sb.WriteString(fmt.Sprintf("Generate a %s fill-in-the-blank question about the topic: %s.\n\n", difficulty, topic))
		sb.WriteString("FIELDS REQUIRED:\n")
		sb.WriteString(fmt.Sprintf("- 'question': A sentence where '%s' represents the missing part.\n", BlankMarker))
		sb.WriteString("- 'answer': The precise word or phrase for the blank.\n")
		sb.WriteString("- 'explanation': Why this answer is the most appropriate.\n\n")
	default:
		sb.WriteString(fmt.Sprintf("Generate a %s multiple-choice question about the topic: %s.\n\n", difficulty, topic))
		sb.WriteString("FIELDS REQUIRED:\n")
		sb.WriteString("- 'question': A clear and challenging question statement.\n")
		sb.WriteString("- 'options': List with EXACTLY 4 options.\n")
		sb.WriteString("- 'correct_answer': The EXACT text content of the correct option. ")
		sb.WriteString("DO NOT return just a letter (like 'A' or 'B'), you MUST return the full string as it appears in the options list.\n")
		sb.WriteString("- 'explanation': A teaching paragraph explaining why the answer is correct.\n")
		sb.WriteString(fmt.Sprintf("- 'difficulty': Must be '%s'.\n\n", difficulty))
	}

	sb.WriteString("Return ONLY the JSON object.")
	return sb.String()
}
