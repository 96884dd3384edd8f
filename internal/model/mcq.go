package model

import "encoding/json"

// MCQuestion 四选一选择题，生成后不可变
// swagger:model MCQuestion
type MCQuestion struct {
	UUIDBase
	SessionID     string `gorm:"type:varchar(36);index;not null" json:"sessionId"`
	Question      string `gorm:"type:text;not null" json:"question"`
	Options       string `gorm:"type:text;not null" json:"-"`                     // JSON序列化的选项数组
	CorrectAnswer string `gorm:"type:varchar(1);not null" json:"correctAnswer"` // A-D
}

func (MCQuestion) TableName() string {
	return "mcqs"
}

// SetOptions 序列化选项数组存入文本列
func (q *MCQuestion) SetOptions(options []string) error {
	data, err := json.Marshal(options)
	if err != nil {
		return err
	}
	q.Options = string(data)
	return nil
}

// OptionList 反序列化选项数组
func (q *MCQuestion) OptionList() ([]string, error) {
	var options []string
	if q.Options == "" {
		return options, nil
	}
	if err := json.Unmarshal([]byte(q.Options), &options); err != nil {
		return nil, err
	}
	return options, nil
}
