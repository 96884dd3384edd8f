package database

import (
	"topiclearn_backend/internal/model"
	"topiclearn_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SeedCatalog 首次启动时写入默认分类/主题/学习路径，为周报推荐提供数据。
// 已有分类数据时不做任何事。
func SeedCatalog(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	seed := map[string][]model.Topic{
		"Programming": {
			{Name: "Introduction to Python Programming", Popularity: 50},
			{Name: "JavaScript Fundamentals", Popularity: 42},
			{Name: "Data Structures and Algorithms", Popularity: 38},
			{Name: "Web Development with Go", Popularity: 30},
			{Name: "SQL and Relational Databases", Popularity: 27},
			{Name: "Version Control with Git", Popularity: 21},
		},
		"Science": {
			{Name: "Introduction to Astronomy", Popularity: 33},
			{Name: "Human Biology Basics", Popularity: 28},
			{Name: "Chemistry of Everyday Life", Popularity: 19},
			{Name: "Classical Mechanics", Popularity: 15},
		},
		"History": {
			{Name: "Ancient Rome", Popularity: 25},
			{Name: "The Industrial Revolution", Popularity: 18},
			{Name: "World War II", Popularity: 31},
		},
		"Languages": {
			{Name: "Spanish for Beginners", Popularity: 29},
			{Name: "Japanese Writing Systems", Popularity: 17},
		},
	}

	paths := map[string]string{
		"Programming": "Full-Stack Developer Path",
		"Science":     "Foundations of Natural Science",
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for name, topics := range seed {
			category := model.Category{Name: name}
			if err := tx.Create(&category).Error; err != nil {
				return err
			}
			for i := range topics {
				topics[i].CategoryID = category.ID
			}
			if err := tx.Create(&topics).Error; err != nil {
				return err
			}
			if pathName, ok := paths[name]; ok {
				path := model.LearningPath{Name: pathName, CategoryID: category.ID}
				if err := tx.Create(&path).Error; err != nil {
					return err
				}
			}
		}
		logger.Log.Info("Seeded catalog data", zap.Int("categories", len(seed)))
		return nil
	})
}
