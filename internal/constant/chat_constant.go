package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleModel     = "model"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	// Default system prompt for direct calls when the caller supplies none.
	DefaultSystemPromptV1 = `You are a knowledgeable tutoring assistant. Answer the user's question accurately and concisely.

RULES:
1. Answer in the language of the question.
2. When context passages are provided, ground the answer in them and say so.
3. If you are not sure, say what you know and what you don't.
4. Use Markdown for structure; keep short answers short.`

	// Reduced prompt for the standard (family 3) fallback path. Kept minimal
	// so a struggling default vendor gets the smallest workable request.
	ReducedSystemPromptV1 = `Answer the user's question briefly and accurately.`
)

// HistoryWindowDefault bounds the prior-message window attached to a
// dispatch. Callers may send more; the core keeps the most recent N.
const HistoryWindowDefault = 8
