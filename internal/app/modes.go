package app

import (
	"tubechat/pkg/domain"
)

const (
	// DefaultChatModel is used when a conversation does not pin a model.
	DefaultChatModel = "google/gemini-2.0-flash"
	// TitleModel is the fast model used for conversation titles.
	TitleModel = "google/gemini-2.0-flash"

	// DefaultSystemPrompt keeps markdown section separators renderable.
	DefaultSystemPrompt = "When separating sections, use a horizontal rule on its own line (a blank line, then ---, then another blank line). Do not put --- inline within sentences."

	transcriptPromptSeparator = "\n\n---\nVideo Transcript:\n"

	defaultFirstMessage = "Summarize the video"
)

// ModeConfig describes one prompt mode preset. Adding a mode is a new table
// entry, nothing else.
type ModeConfig struct {
	ID           domain.PromptMode `json:"id"`
	Label        string            `json:"label"`
	Description  string            `json:"description"`
	SystemPrompt string            `json:"systemPrompt"`
	FirstMessage string            `json:"firstMessage"`
	Model        string            `json:"model"`
}

var promptModes = []ModeConfig{
	{
		ID:           domain.ModeSummary,
		Label:        "Summary",
		Description:  "A structured summary of the video",
		SystemPrompt: "You summarize YouTube videos from their transcript. Produce a concise structured summary: a one-paragraph overview, then the main points in order. Stay faithful to the transcript and do not invent content. " + DefaultSystemPrompt,
		FirstMessage: "Summarize the video",
		Model:        DefaultChatModel,
	},
	{
		ID:           domain.ModeQuiz,
		Label:        "Quiz",
		Description:  "Test your understanding of the video",
		SystemPrompt: "You quiz the user on a YouTube video from its transcript. Ask one multiple-choice question at a time, wait for the answer, then say whether it was right with a short explanation before the next question. " + DefaultSystemPrompt,
		FirstMessage: "Quiz me on this video",
		Model:        DefaultChatModel,
	},
	{
		ID:           domain.ModeExplain,
		Label:        "Explain",
		Description:  "Explain the video simply",
		SystemPrompt: "You explain the content of a YouTube video from its transcript in simple terms, as if to someone new to the topic. Define jargon when it first appears and use short examples. " + DefaultSystemPrompt,
		FirstMessage: "Explain this video in simple terms",
		Model:        DefaultChatModel,
	},
	{
		ID:           domain.ModeInteractive,
		Label:        "Interactive",
		Description:  "Open conversation about the video",
		SystemPrompt: "You answer questions about a YouTube video from its transcript. Ground every answer in the transcript and say so when it does not cover the question. " + DefaultSystemPrompt,
		FirstMessage: "What is this video about?",
		Model:        DefaultChatModel,
	},
	{
		ID:           domain.ModeKeyPoints,
		Label:        "Key Points",
		Description:  "The key takeaways from the video",
		SystemPrompt: "You extract key takeaways from a YouTube video transcript. Return a bulleted list of the most important points, each a single sentence, in the order they appear. " + DefaultSystemPrompt,
		FirstMessage: "List the key points of this video",
		Model:        DefaultChatModel,
	},
}

// ListModes returns the prompt-mode table.
func ListModes() []ModeConfig {
	out := make([]ModeConfig, len(promptModes))
	copy(out, promptModes)
	return out
}

// ModeByID resolves a mode id, falling back to defaults for unknown ids.
func ModeByID(id domain.PromptMode) (ModeConfig, bool) {
	for _, mode := range promptModes {
		if mode.ID == id {
			return mode, true
		}
	}
	return ModeConfig{
		SystemPrompt: DefaultSystemPrompt,
		FirstMessage: defaultFirstMessage,
		Model:        DefaultChatModel,
	}, false
}

// FullSystemPrompt embeds the transcript into a mode's system prompt.
func FullSystemPrompt(modePrompt, transcriptText string) string {
	return modePrompt + transcriptPromptSeparator + transcriptText
}
