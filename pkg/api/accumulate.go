package api

import "strings"

// Accumulator rebuilds complete messages from a sequence of streaming
// chunks. Concatenating the delta content of every chunk for one choice
// index yields the same text a non-streaming call would return.
type Accumulator struct {
	ID      string
	Created int64
	Model   string

	order   []int
	choices map[int]*accumulated
}

type accumulated struct {
	role   Role
	text   strings.Builder
	finish FinishReason
}

// Add folds one chunk into the accumulator. Identity fields are taken from
// the first chunk that carries them.
func (a *Accumulator) Add(chunk *Chunk) {
	if a.choices == nil {
		a.choices = make(map[int]*accumulated)
	}
	if a.ID == "" {
		a.ID = chunk.ID
	}
	if a.Created == 0 {
		a.Created = chunk.Created
	}
	if a.Model == "" {
		a.Model = chunk.Model
	}

	for _, ch := range chunk.Choices {
		acc, ok := a.choices[ch.Index]
		if !ok {
			acc = &accumulated{}
			a.choices[ch.Index] = acc
			a.order = append(a.order, ch.Index)
		}
		if ch.Delta != nil {
			if ch.Delta.Role != "" {
				acc.role = ch.Delta.Role
			}
			acc.text.WriteString(ch.Delta.Text())
		}
		if ch.FinishReason.IsSet() {
			acc.finish = ch.FinishReason
		}
	}
}

// Text returns the content accumulated so far for the given choice index.
func (a *Accumulator) Text(index int) string {
	if acc, ok := a.choices[index]; ok {
		return acc.text.String()
	}
	return ""
}

// Completion returns the accumulated state as a Completion. Choices appear
// in the order their index was first seen. A missing role defaults to
// assistant.
func (a *Accumulator) Completion() *Completion {
	c := &Completion{ID: a.ID, Created: a.Created, Model: a.Model}
	for _, idx := range a.order {
		acc := a.choices[idx]
		role := acc.role
		if role == "" {
			role = RoleAssistant
		}
		c.Choices = append(c.Choices, Choice{
			Index:        idx,
			Message:      &Message{Role: role, Content: acc.text.String()},
			FinishReason: acc.finish,
		})
	}
	return c
}
