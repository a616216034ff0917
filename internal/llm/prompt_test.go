package llm_test

import (
	"strings"
	"testing"

	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/llm"
)

func TestSystemPrompt_SubstitutesContext(t *testing.T) {
	req := llm.Request{Context: "Paris is the capital of France."}

	prompt := llm.SystemPrompt(req)

	if !strings.Contains(prompt, "Paris is the capital of France.") {
		t.Errorf("prompt should contain the retrieved context")
	}
	if strings.Contains(prompt, "{context}") {
		t.Errorf("placeholder should be replaced")
	}
	if !strings.Contains(prompt, "Do not make up information") {
		t.Errorf("default prompt should be used when none is set")
	}
}

func TestSystemPrompt_CustomTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		context  string
		expected string
	}{
		{"with placeholder", "Context:\n{context}\nBe brief.", "ctx", "Context:\nctx\nBe brief."},
		{"without placeholder", "Be brief.", "ctx", "Be brief.\n\nctx"},
		{"without placeholder or context", "Be brief.", "", "Be brief."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := llm.SystemPrompt(llm.Request{SystemPrompt: tt.template, Context: tt.context})
			if got != tt.expected {
				t.Errorf("SystemPrompt() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFormatContext(t *testing.T) {
	chunks := []domain.ScoredChunk{
		{Chunk: domain.Chunk{Text: "first"}},
		{Chunk: domain.Chunk{Text: "second"}},
	}

	if got := llm.FormatContext(chunks); got != "first\n\nsecond" {
		t.Errorf("FormatContext() = %q", got)
	}
	if got := llm.FormatContext(nil); got != "" {
		t.Errorf("FormatContext(nil) = %q, want empty", got)
	}
}

func TestConversation(t *testing.T) {
	req := llm.Request{
		History: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "hello"},
			{Role: llm.RoleUser, Content: "dangling"},
		},
		Question: "what now?",
	}

	conv := llm.Conversation(req)

	if len(conv) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(conv))
	}
	last := conv[2]
	if last.Role != llm.RoleUser || last.Content != "dangling\n\nwhat now?" {
		t.Errorf("consecutive user turns should merge, got %+v", last)
	}
	if len(req.History) != 3 || req.History[2].Content != "dangling" {
		t.Errorf("history must not be modified")
	}
}

func TestBuildPrompt(t *testing.T) {
	req := llm.Request{
		History: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: "Who wrote it?"},
			{Role: llm.RoleAssistant, Content: "Jane."},
		},
		Question: "When?",
		Context:  "Jane wrote it in 1999.",
	}

	prompt := llm.BuildPrompt(req)

	for _, s := range []string{"Jane wrote it in 1999.", "Human: Who wrote it?", "Assistant: Jane.", "Human: When?"} {
		if !strings.Contains(prompt, s) {
			t.Errorf("prompt should contain %q", s)
		}
	}
	if !strings.HasSuffix(prompt, "Assistant:") {
		t.Errorf("prompt should end with the assistant cue")
	}
}
