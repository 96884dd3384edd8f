package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"topiclearn_backend/internal/config"
)

// TextGenerator 生成式文本服务的能力接口。
// 生产环境由 AIService 实现，测试注入确定性假实现。
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AIService 调用 OpenAI 兼容的 chat/completions 接口
type AIService struct {
	config config.AIConfig
	client *http.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{
		config: cfg,
		// 生成接口偶发很慢，限制超时避免请求无限挂起
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Enabled 未配置API Key时直接走降级路径
func (s *AIService) Enabled() bool {
	return s.config.APIKey != ""
}

type aiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message aiChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete 发送单轮对话请求，要求严格JSON输出，返回首个choice的内容
func (s *AIService) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": s.config.Model,
		"messages": []aiChatMessage{
			{Role: "user", Content: prompt},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", err
	}

	if completion.Error != nil {
		return "", fmt.Errorf("AI API error: %s", completion.Error.Message)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("AI API returned no choices")
	}

	return completion.Choices[0].Message.Content, nil
}
