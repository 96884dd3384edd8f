package service

import (
	"fmt"
	"math"
	"topiclearn_backend/internal/model"
)

// 生成服务不可用（配额、网络、JSON解析失败）时使用的静态样例内容。
// 除每条内容新生成的ID外，相同主题的输出完全确定。

func SampleFlashcards(topic string) []GeneratedFlashcard {
	return []GeneratedFlashcard{
		{
			ID:    model.GenerateUUID(),
			Title: "Overview",
			Content: fmt.Sprintf(`<p>This is a flashcard with an overview about <strong>%s</strong>. The content is coming from a local sample source because the AI service is unavailable or has reached its quota limit.</p>
    <p>These sample flashcards will help you learn the basics about this topic while we work on resolving the API connection issue.</p>`, topic),
		},
		{
			ID:    model.GenerateUUID(),
			Title: "Key Concepts",
			Content: fmt.Sprintf(`<p>Here are some key concepts related to <strong>%s</strong>:</p>
    <ul>
      <li>Concept 1: Understanding the fundamentals</li>
      <li>Concept 2: Learning intermediate techniques</li>
      <li>Concept 3: Advanced applications</li>
    </ul>
    <p>Note: This is sample content. For personalized learning materials, please make sure the AI service has available quota.</p>`, topic),
		},
		{
			ID:    model.GenerateUUID(),
			Title: "Practical Applications",
			Content: fmt.Sprintf(`<p>Here are some common applications of <strong>%s</strong>:</p>
    <ul>
      <li>Application in education</li>
      <li>Professional use cases</li>
      <li>Everyday applications</li>
    </ul>
    <p>This sample content is provided when the AI service is unavailable.</p>`, topic),
		},
		{
			ID:    model.GenerateUUID(),
			Title: "Historical Context",
			Content: fmt.Sprintf(`<p>The history of <strong>%s</strong> includes several important milestones:</p>
    <ul>
      <li>Early development and origins</li>
      <li>Major advancements over time</li>
      <li>Current state and future directions</li>
    </ul>
    <p>This is sample content provided when personalized AI-generated content is unavailable.</p>`, topic),
		},
		{
			ID:    model.GenerateUUID(),
			Title: "Learning Resources",
			Content: fmt.Sprintf(`<p>If you want to learn more about <strong>%s</strong>, here are some suggested resources:</p>
    <ul>
      <li>Books and academic papers</li>
      <li>Online courses and tutorials</li>
      <li>Communities and forums</li>
    </ul>
    <p>This is sample content. For personalized content, please ensure the AI service has available quota.</p>`, topic),
		},
	}
}

func SampleMCQs(topic string) []GeneratedMCQ {
	return []GeneratedMCQ{
		{
			ID:       model.GenerateUUID(),
			Question: fmt.Sprintf("Which of the following best describes a fundamental aspect of %s?", topic),
			Options: []string{
				"Understanding core principles",
				"Ignoring basic concepts",
				"Focusing only on advanced techniques",
				"Skipping the learning process",
			},
			CorrectAnswer: "A",
		},
		{
			ID:       model.GenerateUUID(),
			Question: fmt.Sprintf("When studying %s, what approach is generally most effective?", topic),
			Options: []string{
				"Memorizing without understanding",
				"Learning through practical application",
				"Reading without taking notes",
				"Focusing only on theory",
			},
			CorrectAnswer: "B",
		},
		{
			ID:       model.GenerateUUID(),
			Question: fmt.Sprintf("Which resource would likely be most helpful for beginners learning about %s?", topic),
			Options: []string{
				"Advanced research papers",
				"Complex technical documentation",
				"Introductory tutorials and guides",
				"Expert-level workshops",
			},
			CorrectAnswer: "C",
		},
		{
			ID:       model.GenerateUUID(),
			Question: fmt.Sprintf("What is a common challenge when mastering %s?", topic),
			Options: []string{
				"Building foundational knowledge",
				"Finding beginner resources",
				"Understanding theoretical concepts",
				"Applying knowledge to real-world situations",
			},
			CorrectAnswer: "D",
		},
		{
			ID:       model.GenerateUUID(),
			Question: fmt.Sprintf("What aspect of %s typically requires the most practice?", topic),
			Options: []string{
				"Practical implementation skills",
				"Reading about the topic",
				"Watching tutorial videos",
				"Discussing with others",
			},
			CorrectAnswer: "A",
		},
	}
}

// SampleResults 按得分给出固定文案的结果反馈
func SampleResults(totalQuestions, correctAnswers int) *LearningResults {
	scorePercentage := 0
	if totalQuestions > 0 {
		scorePercentage = int(math.Round(float64(correctAnswers) / float64(totalQuestions) * 100))
	}

	return &LearningResults{
		Score:           correctAnswers,
		ScorePercentage: scorePercentage,
		TotalQuestions:  totalQuestions,
		CorrectAnswers:  correctAnswers,
		Strengths:       "You demonstrated a good understanding of the basic concepts covered in this quiz. Your answers show you've grasped the fundamental principles of the topic.",
		Improvements:    "There are some areas where you might benefit from more practice, particularly in applying the concepts to specific situations. Consider reviewing the questions you missed.",
		NextSteps:       "To further improve your understanding, try exploring more advanced topics or practical applications. Consider seeking out additional learning resources or practicing with more complex examples.",
	}
}
