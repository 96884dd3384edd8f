package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Username    string   `gorm:"size:100;unique;not null" json:"username"`
	Password    string   `gorm:"size:100;not null" json:"-"`
	Role        UserRole `gorm:"size:20;default:'student'" json:"role"`
	DisplayName string   `gorm:"size:100" json:"displayName"`
	Email       string   `gorm:"size:100" json:"email"`
	Avatar      string   `gorm:"size:255" json:"avatar"`
	Theme       string   `gorm:"size:20;default:'light'" json:"theme"`

	// 周报偏好：关闭后批量生成会跳过该用户
	WeeklyDigestEnabled bool `gorm:"default:true" json:"weeklyDigestEnabled"`

	CurrentStreak  int        `gorm:"default:0" json:"currentStreak"` // 连续学习天数
	LongestStreak  int        `gorm:"default:0" json:"longestStreak"` // 历史最长连续天数
	TotalPoints    int        `gorm:"default:0" json:"totalPoints"`   // 累计积分
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
}

func (User) TableName() string {
	return "users"
}
