package merge

// systemPrompt asks the model to restructure the assembled conversations
// into six fixed sections.
const systemPrompt = `You are an expert at analyzing and synthesizing AI conversations.
Merge the following chat conversations into a clear, structured document with these sections:
1. Context & Background
2. Key Topics Discussed
3. Main Decisions & Conclusions
4. Action Items & Next Steps
5. Relevant Code Snippets (if any)
6. Key Learnings

Use clear markdown formatting. Be concise and accurate.`

const userPromptPrefix = "Please merge and structure these conversations:\n\n"

func buildUserPrompt(content string) string {
	return userPromptPrefix + content
}
