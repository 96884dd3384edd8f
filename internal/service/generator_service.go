package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"topiclearn_backend/internal/model"
	"topiclearn_backend/pkg/logger"
	"topiclearn_backend/pkg/monitoring"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GeneratorService 按主题生成闪卡/选择题/结果反馈。
// 外部生成调用失败时整体降级到样例内容，并通过 UsingSampleData 标记传递给客户端。
type GeneratorService struct {
	Generator TextGenerator
}

func NewGeneratorService(generator TextGenerator) *GeneratorService {
	return &GeneratorService{Generator: generator}
}

type GeneratedFlashcard struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type GeneratedMCQ struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

type GeneratedContent struct {
	Flashcards      []GeneratedFlashcard `json:"flashcards"`
	MCQs            []GeneratedMCQ       `json:"mcqs"`
	UsingSampleData bool                 `json:"usingSampleData"`
}

type LearningResults struct {
	Score           int    `json:"score"`
	ScorePercentage int    `json:"scorePercentage"`
	CorrectAnswers  int    `json:"correctAnswers"`
	TotalQuestions  int    `json:"totalQuestions"`
	Strengths       string `json:"strengths"`
	Improvements    string `json:"improvements"`
	NextSteps       string `json:"nextSteps"`
}

// ScoredMCQ 结果计算所需的最小题目信息
type ScoredMCQ struct {
	Question      string `json:"question"`
	CorrectAnswer string `json:"correctAnswer"`
}

const flashcardPromptTemplate = `Create a set of 5-10 educational flashcards on the topic "%s".
Each flashcard should have a title and content with educational information.
Make the content rich and educational, including examples, explanations, and key concepts.
Include HTML formatting for better readability (use <p>, <ul>, <li>, <pre>, <code>, etc.).

Format your response as a JSON object that follows this structure:
{
  "flashcards": [
    {
      "title": "Flashcard Title",
      "content": "Flashcard content with <html> formatting"
    }
  ]
}`

const mcqPromptTemplate = `Create a set of 5 multiple-choice questions (MCQs) to test knowledge on the topic "%s".
Each question should have 4 options, with exactly one correct answer.
Make the questions diverse and cover different aspects of the topic.
Vary the difficulty level, with some easier questions and some more challenging ones.

Format your response as a JSON object that follows this structure:
{
  "mcqs": [
    {
      "question": "Question text",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correctAnswer": "A" (or B, C, D - indicating which option is correct)
    }
  ]
}`

// GenerateContent 并行请求闪卡和选择题，任一失败则两者一起降级到样例数据
func (s *GeneratorService) GenerateContent(ctx context.Context, topic string) *GeneratedContent {
	if s.Generator == nil {
		monitoring.SampleFallbackCounter.WithLabelValues("content").Inc()
		return &GeneratedContent{
			Flashcards:      SampleFlashcards(topic),
			MCQs:            SampleMCQs(topic),
			UsingSampleData: true,
		}
	}

	var (
		flashcards []GeneratedFlashcard
		mcqs       []GeneratedMCQ
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		flashcards, err = s.generateFlashcards(gctx, topic)
		return err
	})
	g.Go(func() error {
		var err error
		mcqs, err = s.generateMCQs(gctx, topic)
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Log.Warn("AI generation failed, falling back to sample data",
			zap.String("topic", topic), zap.Error(err))
		monitoring.SampleFallbackCounter.WithLabelValues("content").Inc()
		return &GeneratedContent{
			Flashcards:      SampleFlashcards(topic),
			MCQs:            SampleMCQs(topic),
			UsingSampleData: true,
		}
	}

	return &GeneratedContent{Flashcards: flashcards, MCQs: mcqs}
}

func (s *GeneratorService) generateFlashcards(ctx context.Context, topic string) ([]GeneratedFlashcard, error) {
	raw, err := s.Generator.Complete(ctx, fmt.Sprintf(flashcardPromptTemplate, topic))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Flashcards []GeneratedFlashcard `json:"flashcards"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("malformed flashcard response: %w", err)
	}
	if len(parsed.Flashcards) == 0 {
		return nil, fmt.Errorf("flashcard response contained no flashcards")
	}

	for i := range parsed.Flashcards {
		parsed.Flashcards[i].ID = model.GenerateUUID()
	}
	return parsed.Flashcards, nil
}

func (s *GeneratorService) generateMCQs(ctx context.Context, topic string) ([]GeneratedMCQ, error) {
	raw, err := s.Generator.Complete(ctx, fmt.Sprintf(mcqPromptTemplate, topic))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		MCQs []GeneratedMCQ `json:"mcqs"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("malformed MCQ response: %w", err)
	}
	if len(parsed.MCQs) == 0 {
		return nil, fmt.Errorf("MCQ response contained no questions")
	}
	for _, q := range parsed.MCQs {
		if len(q.Options) != 4 || !isValidAnswerTag(q.CorrectAnswer) {
			return nil, fmt.Errorf("MCQ response violated the 4-option/A-D contract")
		}
	}

	for i := range parsed.MCQs {
		parsed.MCQs[i].ID = model.GenerateUUID()
	}
	return parsed.MCQs, nil
}

func isValidAnswerTag(tag string) bool {
	return tag == "A" || tag == "B" || tag == "C" || tag == "D"
}

// CountCorrect 按位置比较已选答案与正确答案。
// 未作答（缺失或越界）按答错计。
func CountCorrect(mcqs []ScoredMCQ, selected []string) int {
	correct := 0
	for i := range mcqs {
		if i < len(selected) && selected[i] == mcqs[i].CorrectAnswer {
			correct++
		}
	}
	return correct
}

// ScorePercentage 四舍五入的百分制得分
func ScorePercentage(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

const resultsPromptTemplate = `
I've just completed a learning session on "%s".
My test results:
- Score: %d%% (%d out of %d correct)

Here are the questions and my answers:
%s

Based on this performance, please provide:
1. A brief analysis of my strengths (what I understood well)
2. Areas where I need improvement
3. Recommended next steps for continued learning on this topic

Format your response as a JSON object with the following structure:
{
  "strengths": "analysis of what I did well",
  "improvements": "areas where I need to improve",
  "nextSteps": "specific recommendations for continued learning"
}`

// GenerateResults 计算得分并生成个性化反馈。
// 会话已处于降级状态或反馈生成失败时，使用按分数分档的样例文案。
func (s *GeneratorService) GenerateResults(ctx context.Context, topic string, mcqs []ScoredMCQ, selected []string, usingSampleData bool) *LearningResults {
	correct := CountCorrect(mcqs, selected)
	total := len(mcqs)
	percentage := ScorePercentage(correct, total)

	if usingSampleData || s.Generator == nil {
		// 生成阶段已降级，结果反馈同样走确定性路径，避免真实与样例文案混杂
		return SampleResults(total, correct)
	}

	results, err := s.generateFeedback(ctx, topic, mcqs, selected, correct, percentage)
	if err != nil {
		logger.Log.Warn("AI results generation failed, using sample results",
			zap.String("topic", topic), zap.Error(err))
		monitoring.SampleFallbackCounter.WithLabelValues("results").Inc()
		return SampleResults(total, correct)
	}
	return results
}

func (s *GeneratorService) generateFeedback(ctx context.Context, topic string, mcqs []ScoredMCQ, selected []string, correct, percentage int) (*LearningResults, error) {
	var sb strings.Builder
	for i, q := range mcqs {
		userAnswer := "No answer"
		if i < len(selected) {
			userAnswer = selected[i]
		}
		verdict := "Incorrect"
		if userAnswer == q.CorrectAnswer {
			verdict = "Correct"
		}
		fmt.Fprintf(&sb, "\nQ%d: %s\nMy answer: %s (%s)\nCorrect answer: %s\n", i+1, q.Question, userAnswer, verdict, q.CorrectAnswer)
	}

	prompt := fmt.Sprintf(resultsPromptTemplate, topic, percentage, correct, len(mcqs), sb.String())
	raw, err := s.Generator.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Strengths    string `json:"strengths"`
		Improvements string `json:"improvements"`
		NextSteps    string `json:"nextSteps"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("malformed results response: %w", err)
	}

	return &LearningResults{
		Score:           correct,
		ScorePercentage: percentage,
		CorrectAnswers:  correct,
		TotalQuestions:  len(mcqs),
		Strengths:       parsed.Strengths,
		Improvements:    parsed.Improvements,
		NextSteps:       parsed.NextSteps,
	}, nil
}
