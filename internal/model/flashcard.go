package model

// Flashcard 闪卡，生成后不可变
// swagger:model Flashcard
type Flashcard struct {
	UUIDBase
	SessionID string `gorm:"type:varchar(36);index;not null" json:"sessionId"`
	Title     string `gorm:"size:255;not null" json:"title"`
	Content   string `gorm:"type:text;not null" json:"content"` // HTML正文
}

func (Flashcard) TableName() string {
	return "flashcards"
}
