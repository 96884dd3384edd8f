package model

// Category 主题分类，用于周报的热门分类统计与推荐
// swagger:model Category
type Category struct {
	BaseModel
	Name string `gorm:"size:100;unique;not null" json:"name"`
}

func (Category) TableName() string {
	return "categories"
}

// Topic 分类下的候选主题，按热度排序用于推荐
// swagger:model Topic
type Topic struct {
	BaseModel
	Name       string `gorm:"size:255;not null" json:"name"`
	CategoryID uint   `gorm:"index;not null" json:"categoryId"`
	Popularity int    `gorm:"default:0" json:"popularity"`
}

func (Topic) TableName() string {
	return "topics"
}

// LearningPath 结构化学习路径
// swagger:model LearningPath
type LearningPath struct {
	BaseModel
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	CategoryID  uint   `gorm:"index" json:"categoryId"`
}

func (LearningPath) TableName() string {
	return "learning_paths"
}

// PathProgress 用户在学习路径上的进度记录
// swagger:model PathProgress
type PathProgress struct {
	BaseModel
	UserID         uint `gorm:"index;not null" json:"userId"`
	PathID         uint `gorm:"index;not null" json:"pathId"`
	CompletedSteps int  `gorm:"default:0" json:"completedSteps"`
}

func (PathProgress) TableName() string {
	return "path_progress"
}
