package llm

import (
	"strings"
	"testing"

	"github.com/rotisserie/eris"
)

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		countries string
		wantErr   bool
	}{
		{"plain json", `{"countries":["TR","GR"]}`, "TR,GR", false},
		{"code fence", "```json\n{\"countries\":[\"tr\"]}\n```", "TR", false},
		{"prose around", `Sure! {"countries":["EG"]} Hope that helps.`, "EG", false},
		{"drops invalid codes", `{"countries":["EG","Egypt","1"]}`, "EG", false},
		{"empty list", `{"countries":[]}`, "", false},
		{"no object", "unknown period", "", true},
		{"broken object", `{"countries":["EG"`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseAnswer(tt.text)
			if tt.wantErr {
				if err == nil || !eris.Is(err, ErrMalformedAnswer) {
					t.Fatalf("Expected ErrMalformedAnswer, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAnswer failed: %v", err)
			}
			if got := strings.Join(resp.Countries, ","); got != tt.countries {
				t.Errorf("countries = %q, want %q", got, tt.countries)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Meiji Era", "")
	if !strings.Contains(prompt, `"Meiji Era"`) {
		t.Error("prompt should quote the period")
	}
	if strings.Contains(prompt, "titled") {
		t.Error("prompt should not mention a title when none is given")
	}

	prompt = BuildPrompt("Meiji Era", "The Last Samurai")
	if !strings.Contains(prompt, `"The Last Samurai"`) {
		t.Error("prompt should include the title")
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Config{})
	if err != nil || p != nil {
		t.Errorf("empty provider should disable the LLM, got %v, %v", p, err)
	}

	if _, err := NewProvider(Config{Provider: "bard"}); err == nil {
		t.Error("Expected error for unknown provider")
	}

	p, err = NewProvider(Config{Provider: "Ollama", Model: "llama3.1"})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Expected ollama provider, got %s", p.Name())
	}
}
