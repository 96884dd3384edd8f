package model

import (
	"encoding/json"
	"time"
)

// 进度检查点类型："保存稍后继续"时记录用户停在闪卡阶段还是答题阶段
const (
	ProgressTypeFlashcards = "flashcards"
	ProgressTypeMCQ        = "mcq"
)

// LearningSession 一次主题学习：先看闪卡，再做测验
// swagger:model LearningSession
type LearningSession struct {
	UUIDBase
	UserID     *uint  `gorm:"index" json:"userId,omitempty"` // 匿名会话为空
	Topic      string `gorm:"size:255;not null" json:"topic"`
	CategoryID *uint  `gorm:"index" json:"categoryId,omitempty"`

	Score       *int       `json:"score,omitempty"` // 0-100，未完成为空
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// 生成阶段降级到样例内容时为 true，结果生成也走降级路径
	UsingSampleData bool `gorm:"default:false" json:"usingSampleData"`

	// 进度检查点（保存稍后继续）
	ProgressType  string `gorm:"size:20" json:"progressType,omitempty"`
	ProgressIndex int    `gorm:"default:0" json:"progressIndex"`
	ProgressState string `gorm:"type:text" json:"-"` // JSON序列化的部分状态
}

func (LearningSession) TableName() string {
	return "learning_sessions"
}

// ProgressCheckpoint 答题阶段的部分状态，序列化存入 ProgressState
type ProgressCheckpoint struct {
	Answers       []string `json:"answers,omitempty"`
	TimeRemaining int      `json:"timeRemaining,omitempty"`
}

// SetCheckpoint 序列化检查点状态。序列化/反序列化边界集中在这两个方法。
func (s *LearningSession) SetCheckpoint(cp *ProgressCheckpoint) error {
	if cp == nil {
		s.ProgressState = ""
		return nil
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	s.ProgressState = string(data)
	return nil
}

// Checkpoint 反序列化检查点状态，空状态返回 nil
func (s *LearningSession) Checkpoint() (*ProgressCheckpoint, error) {
	if s.ProgressState == "" {
		return nil, nil
	}
	var cp ProgressCheckpoint
	if err := json.Unmarshal([]byte(s.ProgressState), &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}
