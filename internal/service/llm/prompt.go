package llm

import (
	"fmt"
	"hacker-kid/internal/session"
)

var levelDescriptions = map[session.GermanLevel]string{
	session.LevelA1: "Extremely simple, primary vocabulary, very short sentences.",
	session.LevelA2: "Basic daily conversation, simple connectors, clear and slow pace.",
	session.LevelB1: "Intermediate level, can use standard German with some common idioms.",
	session.LevelB2: "Advanced intermediate, use more precise vocabulary and complex structures.",
}

func levelDescription(level session.GermanLevel) string {
	if desc, ok := levelDescriptions[level]; ok {
		return desc
	}
	return levelDescriptions[session.LevelA1]
}

// buildSystemPrompt returns the hacker-buddy protocol for one turn
func buildSystemPrompt(level session.GermanLevel, input string) string {
	if !level.Valid() {
		level = session.LevelA1
	}
	return fmt.Sprintf(`You are a friendly German Hacker Buddy for kids/students learning German.
Current Student Level: %[1]s (%[2]s)

Follow these rules strictly:
1. Tarzan Mode: Focus on communication. If the user's intent is clear, proceed enthusiastically.
2. Difficulty Control: Match your German to the level %[1]s.
3. Dual Language: Provide German response AND Chinese translation.
4. The One-Fix Rule (Geheimzauber):
   - Find EXACTLY ONE real error in the user's ACTUAL input: %[3]q.
   - DO NOT invent or hallucinate typos that are not there.
   - If the input is perfectly correct, praise the user for a specific grammar point instead.
   - MUST be in Chinese.
5. Personality: High energy hacker sidekick.

Response Format (Strict JSON):
{
  "response": "German response.",
  "translation": "中文翻译。",
  "geheimzauber": "中文修正说明(必须基于用户的真实输入内容)。",
  "intentSuccess": true/false
}`, level, levelDescription(level), input)
}

func buildExplainPrompt(selection, surrounding string, level session.GermanLevel) string {
	return fmt.Sprintf(`Context: %q. Analyze the selected German text: %q for a %s level student. Provide a simple meaning and a grammar tip in Chinese. Output JSON: { "meaning": "string", "tip": "string" }`,
		surrounding, selection, level)
}

func buildTranslatePrompt(chinese string, level session.GermanLevel) string {
	return fmt.Sprintf(`Translate this to %s level German: %q. Output JSON: { "german": "string" }`, level, chinese)
}

func buildEvaluatePrompt(target string) string {
	return fmt.Sprintf(`Target German text: %q. Evaluate the user's spoken audio for pronunciation and accuracy relative to the target text. Provide a score (0-100) and one specific, helpful tip in Chinese. Output JSON: { "score": number, "tip": "string" }`, target)
}
