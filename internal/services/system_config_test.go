package services

import (
	"testing"

	"github.com/mentorhub/backend/internal/models"
)

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		sep      string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			sep:      ",",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "value",
			sep:      ",",
			expected: []string{"value"},
		},
		{
			name:     "multiple values",
			input:    "a,b,c",
			sep:      ",",
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "with spaces",
			input:    " a , b , c ",
			sep:      ",",
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "empty parts filtered",
			input:    "a,,b,  ,c",
			sep:      ",",
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "different separator",
			input:    "a;b;c",
			sep:      ";",
			expected: []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitAndTrim(tt.input, tt.sep)
			if len(result) != len(tt.expected) {
				t.Errorf("splitAndTrim() returned %d items, expected %d", len(result), len(tt.expected))
				return
			}
			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("splitAndTrim()[%d] = %q, expected %q", i, v, tt.expected[i])
				}
			}
		})
	}
}

func TestSystemConfigService_GetSet(t *testing.T) {
	db := newTestDB(t)
	s := NewSystemConfigService(db)
	if err := models.SeedSystemConfigs(db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if got := s.GetInt("ai_review_max_items", 0); got != 12 {
		t.Errorf("expected seeded 12, got %d", got)
	}
	if got := s.GetInt("missing_key", 7); got != 7 {
		t.Errorf("expected default 7, got %d", got)
	}
	if s.GetBool("digest_enabled") {
		t.Error("expected digest disabled by default")
	}

	if err := s.Set("digest_enabled", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !s.GetBool("digest_enabled") {
		t.Error("expected digest enabled")
	}
	if err := s.Set("brand_new", "x"); err != nil {
		t.Fatalf("set new: %v", err)
	}
	if v, err := s.Get("brand_new"); err != nil || v != "x" {
		t.Errorf("expected new key stored, got %q (%v)", v, err)
	}

	if err := models.SeedSystemConfigs(db); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if !s.GetBool("digest_enabled") {
		t.Error("seeding must not overwrite stored values")
	}
}

func TestSystemConfigService_UpdateGroup(t *testing.T) {
	db := newTestDB(t)
	s := NewSystemConfigService(db)
	if err := models.SeedSystemConfigs(db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.Set("email_password", "hunter2"); err != nil {
		t.Fatal(err)
	}

	err := s.UpdateGroup("email", &UpdateConfigRequest{Values: map[string]string{
		"email_smtp_host": "smtp.example.com",
		"email_password":  "****",
	}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	cfg := s.GetEmailConfig()
	if cfg.Host != "smtp.example.com" || cfg.Password != "hunter2" {
		t.Errorf("unexpected email config %+v", cfg)
	}

	if err := s.UpdateGroup("email", &UpdateConfigRequest{Values: map[string]string{"ldap_host": "x"}}); err == nil {
		t.Error("expected a key from another group to be refused")
	}

	configs, err := s.GetByGroup("email")
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	for _, c := range configs {
		if c.Key == "email_password" && c.Value != "****" {
			t.Errorf("expected secret masked, got %q", c.Value)
		}
	}
}

func TestSystemConfigService_DigestConfig(t *testing.T) {
	db := newTestDB(t)
	s := NewSystemConfigService(db)
	if err := s.SetMany(map[string]string{"digest_enabled": "true", "digest_country": "us, gb ,"}); err != nil {
		t.Fatal(err)
	}
	cfg := s.GetDigestConfig()
	if !cfg.Enabled || cfg.Time != "18:00" || len(cfg.Country) != 2 || cfg.Country[1] != "gb" {
		t.Errorf("unexpected digest config %+v", cfg)
	}
}
