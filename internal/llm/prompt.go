package llm

import (
	"strings"

	"github.com/Rrens/rag-agent/internal/domain"
)

// contextPlaceholder marks where retrieved context goes in a system prompt
const contextPlaceholder = "{context}"

// DefaultSystemPrompt instructs the model to answer from retrieved context only
const DefaultSystemPrompt = `You are a helpful AI assistant that answers questions based on the provided context.
You have access to multiple documents that have been uploaded for this agent.
Use ALL the following pieces of retrieved context to answer the question comprehensively.
Make sure to consider information from all available documents when formulating your answer.
If you cannot find the answer in the context, say so. Do not make up information.

{context}`

// FormatContext joins retrieved chunk texts with blank lines
func FormatContext(chunks []domain.ScoredChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n\n")
}

// SystemPrompt renders the system prompt with the context substituted.
// Templates without a placeholder get the context appended.
func SystemPrompt(req Request) string {
	tmpl := req.SystemPrompt
	if tmpl == "" {
		tmpl = DefaultSystemPrompt
	}
	if strings.Contains(tmpl, contextPlaceholder) {
		return strings.ReplaceAll(tmpl, contextPlaceholder, req.Context)
	}
	if req.Context == "" {
		return tmpl
	}
	return tmpl + "\n\n" + req.Context
}

// Conversation returns history followed by the question, with consecutive
// same-role turns merged so the transcript strictly alternates
func Conversation(req Request) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(req.History)+1)
	for _, m := range req.History {
		msgs = appendMerged(msgs, m)
	}
	return appendMerged(msgs, ChatMessage{Role: RoleUser, Content: req.Question})
}

func appendMerged(msgs []ChatMessage, m ChatMessage) []ChatMessage {
	if n := len(msgs); n > 0 && msgs[n-1].Role == m.Role {
		msgs[n-1].Content += "\n\n" + m.Content
		return msgs
	}
	return append(msgs, m)
}

// BuildPrompt flattens a request into a single prompt for completion-style APIs
func BuildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString(SystemPrompt(req))
	sb.WriteString("\n\n")
	for _, m := range Conversation(req) {
		switch m.Role {
		case RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString("Human: ")
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("Assistant:")
	return sb.String()
}
