package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
)

// errNotObject is wrapped in a DecodeError when a document's top level is
// valid JSON but not an object.
var errNotObject = errors.New("top-level JSON value is not an object")

// object is a loosely-typed JSON object. Field accessors substitute defaults
// for absent, null, or mistyped values.
type object map[string]json.RawMessage

// parseObject decodes data as a JSON object. It is the only place where
// decoding can fail.
func parseObject(data []byte) (object, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if json.Valid(trimmed) {
			return nil, &DecodeError{Err: errNotObject}
		}
		var v any
		return nil, &DecodeError{Err: json.Unmarshal(trimmed, &v)}
	}
	var obj object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return obj, nil
}

func (o object) str(key string) string {
	var s string
	if raw, ok := o[key]; ok {
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return ""
}

func (o object) strPtr(key string) *string {
	raw, ok := o[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// int64 accepts integral JSON numbers as well as floats, which some servers
// emit for timestamps.
func (o object) int64(key string) int64 {
	raw, ok := o[key]
	if !ok {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(f)
}

func (o object) obj(key string) object {
	raw, ok := o[key]
	if !ok {
		return nil
	}
	var nested object
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	return nested
}

// objects returns the object elements of an array field. Elements that are
// not objects are skipped; a missing or mistyped field yields nil.
func (o object) objects(key string) []object {
	raw, ok := o[key]
	if !ok {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}
	out := make([]object, 0, len(elems))
	for _, elem := range elems {
		var item object
		if err := json.Unmarshal(elem, &item); err != nil || item == nil {
			continue
		}
		out = append(out, item)
	}
	return out
}

// DecodeCompletion maps a non-streaming /chat/completions body to a
// Completion. Every choice carries a Message, in source array order.
func DecodeCompletion(data []byte) (*Completion, error) {
	obj, err := parseObject(data)
	if err != nil {
		return nil, err
	}
	c := &Completion{
		ID:      obj.str("id"),
		Created: obj.int64("created"),
		Model:   obj.str("model"),
	}
	for _, raw := range obj.objects("choices") {
		msg := raw.obj("message")
		c.Choices = append(c.Choices, Choice{
			Index: int(raw.int64("index")),
			Message: &Message{
				Role:    Role(msg.str("role")),
				Content: msg.str("content"),
			},
			FinishReason: FinishReason(raw.str("finish_reason")),
		})
	}
	return c, nil
}

// DecodeChunk maps one streaming event payload to a Chunk. Every choice
// carries a Delta, in source array order.
func DecodeChunk(data []byte) (*Chunk, error) {
	obj, err := parseObject(data)
	if err != nil {
		return nil, err
	}
	c := &Chunk{
		ID:      obj.str("id"),
		Created: obj.int64("created"),
		Model:   obj.str("model"),
	}
	for _, raw := range obj.objects("choices") {
		delta := raw.obj("delta")
		c.Choices = append(c.Choices, Choice{
			Index: int(raw.int64("index")),
			Delta: &Delta{
				Content: delta.strPtr("content"),
				Role:    Role(delta.str("role")),
			},
			FinishReason: FinishReason(raw.str("finish_reason")),
		})
	}
	return c, nil
}

// DecodeModelList maps a /models body to a ModelList.
func DecodeModelList(data []byte) (*ModelList, error) {
	obj, err := parseObject(data)
	if err != nil {
		return nil, err
	}
	list := &ModelList{Data: []Model{}}
	for _, raw := range obj.objects("data") {
		list.Data = append(list.Data, Model{
			ID:      raw.str("id"),
			OwnedBy: raw.str("owned_by"),
		})
	}
	return list, nil
}
