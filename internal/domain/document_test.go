package domain

import (
	"encoding/json"
	"testing"
)

func TestOutput_UnmarshalAndFlatten(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		multi bool
	}{
		{"string", `"x"`, "x", false},
		{"array", `["a","b","c"]`, "a b c", true},
		{"single element array", `["only"]`, "only", true},
		{"empty array", `[]`, "", true},
		{"mixed array", `["open", 9, "to", 5]`, "open 9 to 5", true},
		{"number", `42`, "42", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var o Output
			if err := json.Unmarshal([]byte(tc.input), &o); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := o.Flatten(); got != tc.want {
				t.Errorf("Flatten() = %q, want %q", got, tc.want)
			}
			if o.Multi != tc.multi {
				t.Errorf("Multi = %v, want %v", o.Multi, tc.multi)
			}
		})
	}
}

func TestOutput_UnmarshalRejectsObjectsAndNull(t *testing.T) {
	for _, input := range []string{`{"a":1}`, `null`} {
		var r struct {
			Output Output `json:"output"`
		}
		if err := json.Unmarshal([]byte(`{"output":`+input+`}`), &r); err == nil {
			t.Errorf("expected error for output %s", input)
		}
	}
}

func TestOutput_MarshalKeepsShape(t *testing.T) {
	data, err := json.Marshal(MultiOutput("a", "b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `["a","b"]` {
		t.Errorf("unexpected json: %s", data)
	}

	data, err = json.Marshal(TextOutput("9 to 5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"9 to 5"` {
		t.Errorf("unexpected json: %s", data)
	}
}

func TestKnowledgeBase_CopiesInput(t *testing.T) {
	docs := []Document{{ID: 0, Instruction: "hours"}}
	kb := NewKnowledgeBase(docs)
	docs[0].Instruction = "changed"

	if kb.At(0).Instruction != "hours" {
		t.Errorf("knowledge base must not alias the input slice")
	}
	if kb.Len() != 1 {
		t.Errorf("expected 1 document, got %d", kb.Len())
	}

	var nilKB *KnowledgeBase
	if nilKB.Len() != 0 {
		t.Error("nil knowledge base must report zero length")
	}
}
