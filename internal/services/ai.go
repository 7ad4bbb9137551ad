package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mentorhub/backend/internal/config"
	"github.com/mentorhub/backend/internal/feedback"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/pkg/logger"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
	"gorm.io/gorm"
)

const defaultMaxAIItems = 12

var (
	fencedJSONRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")
)

// DefaultReviewPrompt asks the model for feedback anchored to verbatim spans of the text.
const DefaultReviewPrompt = `You are an experienced writing mentor reviewing a student's document.

Return at most {{max_items}} feedback entries as a JSON array and nothing else.
Each entry is an object with these fields:
- "type": "suggestion" when you propose replacement text, "comment" otherwise
- "selected_text": a span copied verbatim from the document (exact characters, no ellipsis)
- "text": for a suggestion the full replacement for selected_text, for a comment your remark

Prefer short spans that occur once in the document.

Document:
"""
{{content}}
"""`

type AIService struct {
	db            *gorm.DB
	config        *config.OpenAIConfig
	configService *SystemConfigService
	usage         *AIUsageService

	// complete performs one LLM call; replaced in tests.
	complete func(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (*LLMResult, error)
}

func NewAIService(db *gorm.DB, cfg *config.OpenAIConfig) *AIService {
	s := &AIService{
		db:            db,
		config:        cfg,
		configService: NewSystemConfigService(db),
		usage:         NewAIUsageService(db),
	}
	s.complete = s.callLLM
	return s
}

// LLMResult is the raw answer of one provider call.
type LLMResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// DocumentReviewRequest asks for automated feedback on one document version.
type DocumentReviewRequest struct {
	DocumentVersionID uint
	Content           string
	LLMConfigID       uint // 0 uses the configured reviewer model
	MaxItems          int
	RunID             *uint
}

// DocumentReviewResult holds the drafts the model produced whose anchors exist in the text.
type DocumentReviewResult struct {
	Drafts   []feedback.Draft
	Dropped  int
	Provider string
	Model    string
}

type aiFeedbackEntry struct {
	Type         string `json:"type"`
	SelectedText string `json:"selected_text"`
	Text         string `json:"text"`
}

// ReviewDocument prompts the configured LLMs in fallback order and converts the
// answer into automated drafts.
func (s *AIService) ReviewDocument(ctx context.Context, req *DocumentReviewRequest) (*DocumentReviewResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("document is empty")
	}
	maxItems := req.MaxItems
	if maxItems <= 0 {
		maxItems = s.configService.GetInt("ai_review_max_items", defaultMaxAIItems)
	}
	preferred := req.LLMConfigID
	if preferred == 0 {
		preferred = uint(s.configService.GetInt("ai_review_llm_config_id", 0))
	}

	prompt := BuildReviewPrompt(req.Content, maxItems)
	logger.Infof("[AI] Reviewing version %d, prompt length: %d chars", req.DocumentVersionID, len(prompt))

	llmConfigs := s.getOrderedLLMConfigs(preferred)
	if len(llmConfigs) == 0 {
		return nil, fmt.Errorf("no LLM configuration available")
	}

	var lastErr error
	for i, llmConfig := range llmConfigs {
		logger.Infof("[AI] Attempting LLM %d/%d: %s (model: %s)", i+1, len(llmConfigs), llmConfig.Name, llmConfig.Model)

		start := time.Now()
		result, err := s.complete(ctx, &llmConfig, prompt)
		s.recordUsage(&llmConfig, req, result, err, time.Since(start))
		if err != nil {
			lastErr = err
			logger.Infof("[AI] LLM %s failed: %v, trying next...", llmConfig.Name, err)
			continue
		}

		drafts, dropped, err := ParseReviewResponse(result.Content, req.Content, FormatVersionID(req.DocumentVersionID), maxItems)
		if err != nil {
			lastErr = err
			logger.Infof("[AI] LLM %s returned unusable output: %v, trying next...", llmConfig.Name, err)
			continue
		}
		logger.Infof("[AI] Success with LLM: %s, %d items, %d dropped", llmConfig.Name, len(drafts), dropped)
		return &DocumentReviewResult{
			Drafts:   drafts,
			Dropped:  dropped,
			Provider: providerName(&llmConfig),
			Model:    llmConfig.Model,
		}, nil
	}

	return nil, fmt.Errorf("all LLMs failed, last error: %w", lastErr)
}

// BuildReviewPrompt fills the reviewer prompt template.
func BuildReviewPrompt(content string, maxItems int) string {
	prompt := strings.ReplaceAll(DefaultReviewPrompt, "{{max_items}}", strconv.Itoa(maxItems))
	return strings.ReplaceAll(prompt, "{{content}}", content)
}

// ParseReviewResponse extracts the JSON array from a model answer. Entries whose
// selected_text does not occur in content, or that are malformed, are dropped.
func ParseReviewResponse(answer, content, versionID string, maxItems int) ([]feedback.Draft, int, error) {
	raw := extractJSONArray(answer)
	if raw == "" {
		return nil, 0, fmt.Errorf("no JSON array in response")
	}
	var entries []aiFeedbackEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}

	now := time.Now()
	seen := make(map[aiFeedbackEntry]bool)
	drafts := make([]feedback.Draft, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		e.Type = strings.ToLower(strings.TrimSpace(e.Type))
		draft := feedback.Draft{
			Text:              strings.TrimSpace(e.Text),
			SelectedText:      e.SelectedText,
			Type:              feedback.Type(e.Type),
			Timestamp:         now,
			Author:            feedback.Automated(),
			DocumentVersionID: versionID,
		}
		if draft.Validate() != nil || !strings.Contains(content, e.SelectedText) || seen[e] {
			dropped++
			continue
		}
		if draft.Type == feedback.TypeSuggestion && draft.Text == e.SelectedText {
			dropped++
			continue
		}
		if maxItems > 0 && len(drafts) >= maxItems {
			dropped++
			continue
		}
		seen[e] = true
		drafts = append(drafts, draft)
	}
	return drafts, dropped, nil
}

func extractJSONArray(answer string) string {
	if m := fencedJSONRegex.FindStringSubmatch(answer); len(m) == 2 {
		return m[1]
	}
	start := strings.Index(answer, "[")
	end := strings.LastIndex(answer, "]")
	if start < 0 || end <= start {
		return ""
	}
	return answer[start : end+1]
}

func (s *AIService) recordUsage(llmConfig *models.LLMConfig, req *DocumentReviewRequest, result *LLMResult, err error, latency time.Duration) {
	if s.usage == nil {
		return
	}
	versionID := req.DocumentVersionID
	entry := &models.AIUsageLog{
		AIReviewRunID:     req.RunID,
		DocumentVersionID: &versionID,
		LLMConfigID:       llmConfig.ID,
		Provider:          providerName(llmConfig),
		Model:             llmConfig.Model,
		LatencyMs:         latency.Milliseconds(),
		Success:           err == nil,
	}
	if result != nil {
		entry.PromptTokens = result.PromptTokens
		entry.CompletionTokens = result.CompletionTokens
		entry.TotalTokens = result.PromptTokens + result.CompletionTokens
	}
	if err != nil {
		msg := err.Error()
		if len(msg) > 500 {
			msg = msg[:500]
		}
		entry.ErrorMessage = msg
	}
	s.usage.Record(entry)
}

func providerName(llmConfig *models.LLMConfig) string {
	if llmConfig.Provider == "" {
		return "openai"
	}
	return llmConfig.Provider
}

// getOrderedLLMConfigs returns the preferred config, the default, the other
// active configs and finally the static fallback from the config file.
func (s *AIService) getOrderedLLMConfigs(preferredID uint) []models.LLMConfig {
	var configs []models.LLMConfig

	if preferredID > 0 {
		var preferred models.LLMConfig
		if err := s.db.Where("id = ? AND is_active = ?", preferredID, true).First(&preferred).Error; err == nil {
			configs = append(configs, preferred)
		} else {
			logger.Infof("[AI] Preferred LLM config %d not found or inactive", preferredID)
		}
	}

	var defaultConfig models.LLMConfig
	if err := s.db.Where("is_default = ? AND is_active = ?", true, true).First(&defaultConfig).Error; err == nil {
		if len(configs) == 0 || configs[0].ID != defaultConfig.ID {
			configs = append(configs, defaultConfig)
		}
	}

	existingIDs := make(map[uint]bool)
	for _, c := range configs {
		existingIDs[c.ID] = true
	}
	var backupConfigs []models.LLMConfig
	s.db.Where("is_active = ?", true).Order("id ASC").Find(&backupConfigs)
	for _, c := range backupConfigs {
		if !existingIDs[c.ID] {
			configs = append(configs, c)
		}
	}

	if len(configs) == 0 && s.config != nil && s.config.APIKey != "" {
		configs = append(configs, models.LLMConfig{
			Name:    "fallback",
			BaseURL: s.config.BaseURL,
			APIKey:  s.config.APIKey,
			Model:   s.config.Model,
		})
	}

	return configs
}

// callLLM dispatches to the provider-specific call based on the Provider field
func (s *AIService) callLLM(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (*LLMResult, error) {
	logger.Infof("[AI] Using provider: %s, model: %s, baseURL: %s", llmConfig.Provider, llmConfig.Model, llmConfig.BaseURL)

	switch llmConfig.Provider {
	case "anthropic":
		return s.callAnthropic(ctx, llmConfig, prompt)
	case "ollama":
		return s.callOllama(ctx, llmConfig, prompt)
	case "gemini":
		return s.callGemini(ctx, llmConfig, prompt)
	case "azure":
		return s.callAzure(ctx, llmConfig, prompt)
	default:
		// openai and OpenAI-compatible services
		return s.callOpenAI(ctx, llmConfig, prompt)
	}
}

func temperatureOf(llmConfig *models.LLMConfig) float32 {
	if llmConfig.Temperature > 0 {
		return float32(llmConfig.Temperature)
	}
	return 0.3
}

func (s *AIService) callOpenAI(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (*LLMResult, error) {
	clientConfig := openai.DefaultConfig(llmConfig.APIKey)
	if llmConfig.BaseURL != "" {
		clientConfig.BaseURL = llmConfig.BaseURL
	}
	return chatCompletion(ctx, openai.NewClientWithConfig(clientConfig), llmConfig, prompt, "OpenAI")
}

// callAzure uses the Model field as the deployment name.
func (s *AIService) callAzure(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (*LLMResult, error) {
	clientConfig := openai.DefaultAzureConfig(llmConfig.APIKey, llmConfig.BaseURL)
	return chatCompletion(ctx, openai.NewClientWithConfig(clientConfig), llmConfig, prompt, "Azure OpenAI")
}

func chatCompletion(ctx context.Context, client *openai.Client, llmConfig *models.LLMConfig, prompt, label string) (*LLMResult, error) {
	req := openai.ChatCompletionRequest{
		Model: llmConfig.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperatureOf(llmConfig),
	}
	if llmConfig.MaxTokens > 0 {
		req.MaxTokens = llmConfig.MaxTokens
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		logger.Infof("[AI] %s API error: %v", label, err)
		return nil, fmt.Errorf("%s API error: %w", label, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from %s", label)
	}

	content := resp.Choices[0].Message.Content
	logger.Infof("[AI] %s response length: %d chars", label, len(content))
	return &LLMResult{
		Content:          content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (s *AIService) callAnthropic(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (*LLMResult, error) {
	opts := []option.RequestOption{option.WithAPIKey(llmConfig.APIKey)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(llmConfig.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := int64(llmConfig.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}
	model := llmConfig.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		logger.Infof("[AI] Anthropic API error: %v", err)
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	logger.Infof("[AI] Anthropic response length: %d chars", content.Len())
	return &LLMResult{
		Content:          content.String(),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func (s *AIService) callOllama(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (*LLMResult, error) {
	baseURL := llmConfig.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama base URL: %w", err)
	}
	client := api.NewClient(u, http.DefaultClient)

	model := llmConfig.Model
	if model == "" {
		model = "llama3"
	}

	var (
		content strings.Builder
		result  LLMResult
	)
	err = client.Chat(ctx, &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Options: map[string]interface{}{
			"temperature": llmConfig.Temperature,
		},
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			result.PromptTokens = resp.PromptEvalCount
			result.CompletionTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		logger.Infof("[AI] Ollama API error: %v", err)
		return nil, fmt.Errorf("Ollama API error: %w", err)
	}

	result.Content = content.String()
	logger.Infof("[AI] Ollama response length: %d chars", len(result.Content))
	return &result, nil
}

func (s *AIService) callGemini(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (*LLMResult, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: llmConfig.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini client error: %w", err)
	}

	model := llmConfig.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		logger.Infof("[AI] Gemini API error: %v", err)
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	result := &LLMResult{Content: resp.Text()}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	logger.Infof("[AI] Gemini response length: %d chars", len(result.Content))
	return result, nil
}

// TestConnection sends a tiny prompt through one config.
func (s *AIService) TestConnection(ctx context.Context, llmConfig *models.LLMConfig) (string, error) {
	result, err := s.complete(ctx, llmConfig, "Reply with the single word: ok")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Content), nil
}
