package prompt

import (
	"fmt"
	"strings"

	"github.com/rhuss/llmclient/pkg/api"
)

// Format selects how passages and query are laid out in messages.
type Format string

const (
	// FormatNone sends the query without retrieved context.
	FormatNone Format = "none"

	// FormatDefault puts context and question into one user message.
	FormatDefault Format = "default"

	// FormatLFM2RAG lists passages as numbered <documentN> blocks in a
	// system message, as expected by LFM2-RAG models.
	FormatLFM2RAG Format = "lfm2-rag"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatNone, FormatDefault, FormatLFM2RAG:
		return f, nil
	}
	return "", fmt.Errorf("unknown prompt format %q", s)
}

const (
	noContextInstructions = "Instructions: Provide clear, concise answers based on what you know. " +
		"Limit your response to 3-4 sentences maximum. Be direct and avoid unnecessary elaboration."

	documentInstructions = "Instructions: Provide clear, concise answers based only on the information in the documents. " +
		"Limit your response to 3-4 sentences maximum. Be direct and avoid unnecessary elaboration."

	contextPreamble = "Based on the following context, please answer the user's question concisely and directly.\n" +
		"If the context does not contain the answer, state that the information is not available in the provided context.\n" +
		"Limit your response to 3-4 sentences maximum. Be clear and focused - avoid unnecessary elaboration."
)

// Build assembles the messages for query. With no passages, every format
// falls back to FormatNone.
func Build(format Format, query string, passages []Passage) ([]api.Message, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		format = FormatNone
	}

	switch format {
	case FormatLFM2RAG:
		var docs strings.Builder
		for i, p := range passages {
			if i > 0 {
				docs.WriteString("\n\n")
			}
			fmt.Fprintf(&docs, "<document%d>\n%s\n</document%d>", i+1, p.Text, i+1)
		}
		system := "The following documents may provide you additional information to answer questions:\n\n" +
			docs.String() + "\n\n" + documentInstructions
		return []api.Message{
			{Role: api.RoleSystem, Content: system},
			{Role: api.RoleUser, Content: query},
		}, nil

	case FormatDefault:
		texts := make([]string, len(passages))
		for i, p := range passages {
			texts[i] = p.Text
		}
		content := contextPreamble +
			"\n\nContext:\n" + strings.Join(texts, "\n\n") +
			"\n\nQuestion:\n" + query +
			"\n\nAnswer:\n"
		return []api.Message{{Role: api.RoleUser, Content: content}}, nil

	default:
		return []api.Message{
			{Role: api.RoleSystem, Content: noContextInstructions},
			{Role: api.RoleUser, Content: query},
		}, nil
	}
}

// Render formats messages for human inspection.
func Render(messages []api.Message) string {
	rule := strings.Repeat("-", 60)
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s]\n%s\n%s\n", strings.ToUpper(string(m.Role)), m.Content, rule)
	}
	return b.String()
}
