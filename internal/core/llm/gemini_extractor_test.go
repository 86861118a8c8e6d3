package llm

import (
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/markdave123-py/pagetext/internal/core"
)

func TestPagePrompt(t *testing.T) {
	p := pagePrompt(core.PageRange{Index: 2, Start: 11, End: 15}, "Arabic")
	for _, want := range []string{
		"pages 11 to 15",
		"Return ONLY the text content",
		"preserving all Arabic text exactly",
		"return an empty response",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt %q missing %q", p, want)
		}
	}

	if p := pagePrompt(core.PageRange{Start: 1, End: 1}, ""); strings.Contains(p, "preserving all") {
		t.Errorf("language hint leaked into %q", p)
	}
}

func TestResponseText(t *testing.T) {
	if got := responseText(nil); got != "" {
		t.Fatalf("nil response = %q", got)
	}
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("مرحبا "), genai.Text("بالعالم")}},
		}},
	}
	if got := responseText(resp); got != "مرحبا بالعالم" {
		t.Fatalf("text = %q", got)
	}
	empty := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}
	if got := responseText(empty); got != "" {
		t.Fatalf("empty candidate = %q", got)
	}
}
