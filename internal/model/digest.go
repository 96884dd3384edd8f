package model

import (
	"encoding/json"
	"time"
)

// LearningDigest 每周学习摘要，按 (用户, 周) 派生计算，不由用户编辑。
// (user_id, week_start_date) 上的唯一索引兜底应用层的重叠预检查。
// swagger:model LearningDigest
type LearningDigest struct {
	BaseModel
	UserID        uint      `gorm:"uniqueIndex:idx_digest_user_week;not null" json:"userId"`
	WeekStartDate time.Time `gorm:"uniqueIndex:idx_digest_user_week;not null" json:"weekStartDate"`
	WeekEndDate   time.Time `gorm:"not null" json:"weekEndDate"`

	TotalSessions         int      `gorm:"default:0" json:"totalSessions"`
	CompletedSessions     int      `gorm:"default:0" json:"completedSessions"`
	AverageScore          *float64 `json:"averageScore,omitempty"` // 无计分会话时为空
	TotalTimeSpentMinutes int      `gorm:"default:0" json:"totalTimeSpentMinutes"`
	TopCategory           *string  `gorm:"size:100" json:"topCategory,omitempty"`
	TopPerformingTopic    *string  `gorm:"size:255" json:"topPerformingTopic,omitempty"`
	ImprovementAreas      *string  `gorm:"size:255" json:"improvementAreas,omitempty"`
	Streak                int      `gorm:"default:0" json:"streak"`
	PointsEarned          int      `gorm:"default:0" json:"pointsEarned"`

	Insights        string `gorm:"type:text" json:"-"` // JSON序列化的洞察列表
	Recommendations string `gorm:"type:text" json:"-"` // JSON序列化的建议列表

	OpenedAt *time.Time `json:"openedAt,omitempty"` // 用户首次查看时间
}

func (LearningDigest) TableName() string {
	return "learning_digests"
}

// DigestInsight 周报中的单条洞察
// swagger:model DigestInsight
type DigestInsight struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (d *LearningDigest) SetInsights(insights []DigestInsight) error {
	data, err := json.Marshal(insights)
	if err != nil {
		return err
	}
	d.Insights = string(data)
	return nil
}

func (d *LearningDigest) InsightList() ([]DigestInsight, error) {
	var insights []DigestInsight
	if d.Insights == "" {
		return insights, nil
	}
	if err := json.Unmarshal([]byte(d.Insights), &insights); err != nil {
		return nil, err
	}
	return insights, nil
}

func (d *LearningDigest) SetRecommendations(recs []string) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	d.Recommendations = string(data)
	return nil
}

func (d *LearningDigest) RecommendationList() ([]string, error) {
	var recs []string
	if d.Recommendations == "" {
		return recs, nil
	}
	if err := json.Unmarshal([]byte(d.Recommendations), &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
