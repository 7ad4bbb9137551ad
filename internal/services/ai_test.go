package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mentorhub/backend/internal/config"
	"github.com/mentorhub/backend/internal/feedback"
	"github.com/mentorhub/backend/internal/models"
)

const reviewDoc = "I am very happy to be here. The weather is nice."

func TestParseReviewResponse(t *testing.T) {
	tests := []struct {
		name        string
		answer      string
		maxItems    int
		wantItems   int
		wantDropped int
		wantErr     bool
	}{
		{
			name:      "plain array",
			answer:    `[{"type":"suggestion","selected_text":"very happy","text":"delighted"},{"type":"comment","selected_text":"weather","text":"Nice detail"}]`,
			wantItems: 2,
		},
		{
			name:      "fenced json with prose",
			answer:    "Here you go:\n```json\n[{\"type\":\"comment\",\"selected_text\":\"happy\",\"text\":\"good\"}]\n```\nThanks",
			wantItems: 1,
		},
		{
			name:        "anchor missing from text",
			answer:      `[{"type":"suggestion","selected_text":"very sad","text":"glad"}]`,
			wantDropped: 1,
		},
		{
			name:        "unknown type and empty text",
			answer:      `[{"type":"praise","selected_text":"happy","text":"x"},{"type":"comment","selected_text":"happy","text":"  "}]`,
			wantDropped: 2,
		},
		{
			name:        "suggestion equal to anchor",
			answer:      `[{"type":"suggestion","selected_text":"happy","text":"happy"}]`,
			wantDropped: 1,
		},
		{
			name:        "duplicates",
			answer:      `[{"type":"comment","selected_text":"happy","text":"a"},{"type":"comment","selected_text":"happy","text":"a"}]`,
			wantItems:   1,
			wantDropped: 1,
		},
		{
			name:        "capped",
			answer:      `[{"type":"comment","selected_text":"happy","text":"a"},{"type":"comment","selected_text":"here","text":"b"}]`,
			maxItems:    1,
			wantItems:   1,
			wantDropped: 1,
		},
		{
			name:    "no array",
			answer:  "I could not review this.",
			wantErr: true,
		},
		{
			name:    "broken json",
			answer:  `[{"type":"comment",]`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, dropped, err := ParseReviewResponse(tt.answer, reviewDoc, "5", tt.maxItems)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(drafts) != tt.wantItems || dropped != tt.wantDropped {
				t.Errorf("got %d items %d dropped, want %d/%d", len(drafts), dropped, tt.wantItems, tt.wantDropped)
			}
			for _, d := range drafts {
				if !d.Author.IsAutomated() || d.DocumentVersionID != "5" {
					t.Errorf("draft not automated for version 5: %+v", d)
				}
				if d.Validate() != nil {
					t.Errorf("invalid draft produced: %+v", d)
				}
			}
		})
	}
}

func TestBuildReviewPrompt(t *testing.T) {
	prompt := BuildReviewPrompt("essay body", 4)
	if !strings.Contains(prompt, "essay body") || !strings.Contains(prompt, "at most 4") {
		t.Errorf("placeholders not filled: %s", prompt)
	}
	if strings.Contains(prompt, "{{") {
		t.Error("unfilled placeholder left in prompt")
	}
}

func newTestAIService(t *testing.T) *AIService {
	t.Helper()
	s := NewAIService(newTestDB(t), &config.OpenAIConfig{})
	s.usage = nil
	return s
}

func TestAIService_OrderedConfigs(t *testing.T) {
	s := newTestAIService(t)
	configs := []models.LLMConfig{
		{Name: "backup", APIKey: "k", Model: "m", IsActive: true},
		{Name: "default", APIKey: "k", Model: "m", IsActive: true, IsDefault: true},
		{Name: "preferred", APIKey: "k", Model: "m", IsActive: true},
	}
	for i := range configs {
		if err := s.db.Create(&configs[i]).Error; err != nil {
			t.Fatal(err)
		}
	}

	got := s.getOrderedLLMConfigs(configs[2].ID)
	var names []string
	for _, c := range got {
		names = append(names, c.Name)
	}
	if strings.Join(names, ",") != "preferred,default,backup" {
		t.Errorf("unexpected order %v", names)
	}
}

func TestAIService_NoConfigWithoutFallbackKey(t *testing.T) {
	s := newTestAIService(t)
	if got := s.getOrderedLLMConfigs(0); len(got) != 0 {
		t.Errorf("expected no configs, got %d", len(got))
	}
	_, err := s.ReviewDocument(context.Background(), &DocumentReviewRequest{DocumentVersionID: 1, Content: reviewDoc})
	if err == nil {
		t.Error("expected error without any LLM config")
	}
}

func TestAIService_ReviewDocumentFallsBack(t *testing.T) {
	s := newTestAIService(t)
	s.config = &config.OpenAIConfig{APIKey: "sk", Model: "gpt"}
	for _, name := range []string{"broken", "garbage", "good"} {
		if err := s.db.Create(&models.LLMConfig{Name: name, Provider: "openai", APIKey: "k", Model: name, IsActive: true}).Error; err != nil {
			t.Fatal(err)
		}
	}

	var calls []string
	s.complete = func(ctx context.Context, c *models.LLMConfig, prompt string) (*LLMResult, error) {
		calls = append(calls, c.Name)
		switch c.Name {
		case "broken":
			return nil, errors.New("timeout")
		case "garbage":
			return &LLMResult{Content: "sorry"}, nil
		}
		return &LLMResult{Content: `[{"type":"suggestion","selected_text":"very happy","text":"thrilled"},{"type":"comment","selected_text":"missing","text":"x"}]`}, nil
	}

	result, err := s.ReviewDocument(context.Background(), &DocumentReviewRequest{DocumentVersionID: 9, Content: reviewDoc, MaxItems: 5})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if strings.Join(calls, ",") != "broken,garbage,good" {
		t.Errorf("unexpected call order %v", calls)
	}
	if len(result.Drafts) != 1 || result.Dropped != 1 || result.Model != "good" || result.Provider != "openai" {
		t.Errorf("unexpected result %+v", result)
	}
	if d := result.Drafts[0]; d.Type != feedback.TypeSuggestion || d.DocumentVersionID != "9" {
		t.Errorf("unexpected draft %+v", d)
	}
}

func TestAIService_EmptyDocument(t *testing.T) {
	s := newTestAIService(t)
	if _, err := s.ReviewDocument(context.Background(), &DocumentReviewRequest{Content: "  "}); err == nil {
		t.Error("expected error for empty document")
	}
}
