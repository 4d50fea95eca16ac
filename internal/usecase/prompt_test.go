package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kendra-chatbot/internal/domain"
)

func TestBuildCondensePrompt_SubstitutesVerbatim(t *testing.T) {
	history := domain.ConversationHistory{{UserInput: "What is {context}?", Answer: "A placeholder."}}
	prompt := buildCondensePrompt(history, "  and {question}?  ")

	require.Contains(t, prompt, "Human: What is {context}?\nAssistant: A placeholder.")
	require.Contains(t, prompt, "Follow Up Question:   and {question}?  \n")
	require.NotContains(t, prompt, "{chat_history}")
}

func TestBuildAnswerPrompt_IncludesDocumentsAndRules(t *testing.T) {
	docs := []domain.DocumentReference{
		{Title: "First", Excerpt: "one"},
		{Title: "Second", Excerpt: "two"},
	}
	prompt := buildAnswerPrompt(docs, "what?")

	require.Contains(t, prompt, "<documents>\nDocument Title: First\nDocument Excerpt: \none\n\n\nDocument Title: Second\nDocument Excerpt: \ntwo\n\n</documents>")
	require.Contains(t, prompt, "provide a detailed answer for, what?")
	require.Contains(t, prompt, `Answer "don't know" if not present in the document.`)
}

func TestBuildAnswerPrompt_NoDocuments(t *testing.T) {
	prompt := buildAnswerPrompt(nil, "what?")
	require.Contains(t, prompt, "<documents>\n\n</documents>")
}

func TestFormatChatHistory_Empty(t *testing.T) {
	require.Equal(t, "", formatChatHistory(nil))
}
