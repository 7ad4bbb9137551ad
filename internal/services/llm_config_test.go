package services

import (
	"errors"
	"testing"
)

func TestValidateProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		baseURL  string
		apiKey   string
		wantErr  bool
	}{
		{"openai with key", "openai", "", "sk-1", false},
		{"openai without key", "openai", "", "", true},
		{"azure needs url", "azure", "", "k", true},
		{"azure complete", "azure", "https://x.openai.azure.com", "k", false},
		{"ollama keyless", "ollama", "", "", false},
		{"anthropic with key", "anthropic", "", "k", false},
		{"unknown provider", "bard", "", "k", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateProvider(tt.provider, tt.baseURL, tt.apiKey)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLLMConfigService_SingleDefault(t *testing.T) {
	svc := NewLLMConfigService(newTestDB(t))

	first, err := svc.Create(&CreateLLMConfigRequest{Name: "a", APIKey: "sk-aaaaaaaaaaaa", Model: "gpt-4o-mini", IsDefault: true, IsActive: true})
	if err != nil {
		t.Fatal(err)
	}
	if first.Provider != "openai" || first.MaxTokens != 4096 || first.Temperature != 0.3 {
		t.Errorf("defaults not applied: %+v", first)
	}
	if first.APIKeyMask != "sk-a****aaaa" {
		t.Errorf("unexpected mask %q", first.APIKeyMask)
	}

	second, err := svc.Create(&CreateLLMConfigRequest{Name: "b", Provider: "Anthropic", APIKey: "k", Model: "claude", IsDefault: true, IsActive: true})
	if err != nil {
		t.Fatal(err)
	}
	if second.Provider != "anthropic" {
		t.Errorf("provider not normalised: %q", second.Provider)
	}

	def, err := svc.GetDefault()
	if err != nil {
		t.Fatal(err)
	}
	if def.ID != second.ID {
		t.Errorf("expected second config as default, got %d", def.ID)
	}

	yes := true
	if _, err := svc.Update(first.ID, &UpdateLLMConfigRequest{IsDefault: &yes}); err != nil {
		t.Fatal(err)
	}
	def, _ = svc.GetDefault()
	if def.ID != first.ID {
		t.Errorf("expected first config as default after update, got %d", def.ID)
	}
}

func TestLLMConfigService_UpdateValidatesAndDeletes(t *testing.T) {
	svc := NewLLMConfigService(newTestDB(t))

	cfg, err := svc.Create(&CreateLLMConfigRequest{Name: "local", Provider: "ollama", Model: "llama3", IsActive: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Update(cfg.ID, &UpdateLLMConfigRequest{Provider: "gemini"}); err == nil {
		t.Error("expected gemini without api key to be rejected")
	}

	no := false
	if _, err := svc.Update(cfg.ID, &UpdateLLMConfigRequest{IsActive: &no}); err != nil {
		t.Fatal(err)
	}
	active, err := svc.GetActive()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active configs, got %d", len(active))
	}

	if err := svc.Delete(cfg.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(cfg.ID); !errors.Is(err, ErrLLMConfigNotFound) {
		t.Errorf("expected ErrLLMConfigNotFound, got %v", err)
	}
	if _, err := svc.GetByID(cfg.ID); !errors.Is(err, ErrLLMConfigNotFound) {
		t.Errorf("expected ErrLLMConfigNotFound, got %v", err)
	}
}
