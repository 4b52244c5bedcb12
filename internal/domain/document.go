package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Output is a dataset answer. It is either a single string or an ordered list of parts.
type Output struct {
	Parts []string
	Multi bool // decoded from a JSON array
}

// TextOutput builds a single-part output.
func TextOutput(s string) Output { return Output{Parts: []string{s}} }

// MultiOutput builds a multi-part output.
func MultiOutput(parts ...string) Output { return Output{Parts: parts, Multi: true} }

// Flatten joins the parts with a single space, preserving order.
func (o Output) Flatten() string {
	return strings.Join(o.Parts, " ")
}

// UnmarshalJSON accepts a string or an array. Non-string array items keep their JSON text.
func (o *Output) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("output is null")
	}

	if data[0] != '[' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			// numbers and booleans are rendered as written
			if data[0] == '{' {
				return fmt.Errorf("output must be a string or an array: %w", err)
			}
			s = string(data)
		}
		*o = TextOutput(s)
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode output array: %w", err)
	}
	parts := make([]string, len(raw))
	for i, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			parts[i] = s
			continue
		}
		parts[i] = string(bytes.TrimSpace(item))
	}
	*o = MultiOutput(parts...)
	return nil
}

// MarshalJSON writes the output back in the shape it was read.
func (o Output) MarshalJSON() ([]byte, error) {
	if o.Multi {
		return json.Marshal(o.Parts)
	}
	return json.Marshal(o.Flatten())
}

// Record is one dataset entry before embedding.
type Record struct {
	Instruction string `json:"instruction"`
	Output      Output `json:"output"`
}

// Document is an immutable knowledge base entry. ID is its position in the dataset.
type Document struct {
	ID          int
	Instruction string
	Output      Output
	Embedding   DualEmbedding
}

// KnowledgeBase is the ordered, read-only collection of documents.
// Safe for concurrent reads; replaced wholesale on reload.
type KnowledgeBase struct {
	docs []Document
}

// NewKnowledgeBase copies docs into a new knowledge base.
func NewKnowledgeBase(docs []Document) *KnowledgeBase {
	cp := make([]Document, len(docs))
	copy(cp, docs)
	return &KnowledgeBase{docs: cp}
}

// Len returns the number of documents. A nil knowledge base is empty.
func (kb *KnowledgeBase) Len() int {
	if kb == nil {
		return 0
	}
	return len(kb.docs)
}

// At returns a pointer to the i-th document. Callers must not mutate it.
func (kb *KnowledgeBase) At(i int) *Document {
	return &kb.docs[i]
}

// Query is a transient user utterance with its embedding.
type Query struct {
	Text      string
	Embedding DualEmbedding
}

// RankedResult is a scored reference to a knowledge base document.
type RankedResult struct {
	Document *Document
	Score    float64
}
