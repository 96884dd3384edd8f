// 手动触发每周学习摘要批量生成脚本
//
// 该功能已集成到主应用的后台定时任务中（周日晚间自动执行）。
// 此脚本仅用于手动触发，例如定时任务停用或需要补生成时。
//
// 用法: go run scripts/generate_digests.go

package main

import (
	"context"
	"log"
	"topiclearn_backend/internal/config"
	"topiclearn_backend/internal/repository"
	"topiclearn_backend/internal/service"
	"topiclearn_backend/pkg/database"
	"topiclearn_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Redis连接失败: %v", err)
	}

	sessionRepo := repository.NewSessionRepository(db)
	digestRepo := repository.NewDigestRepository(db)
	userRepo := repository.NewUserRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	var textGen service.TextGenerator
	ai := service.NewAIService(cfg.AI)
	if ai.Enabled() {
		textGen = ai
	}

	digestService := service.NewDigestService(sessionRepo, digestRepo, userRepo, catalogRepo, textGen, rdb)

	log.Println("手动触发周报批量生成...")
	result, err := digestService.GenerateWeeklyDigests(context.Background())
	if err != nil {
		log.Fatalf("批量生成失败: %v", err)
	}
	log.Printf("完成！用户 %d，新建 %d，跳过 %d，失败 %d", result.Users, result.Created, result.Skipped, result.Failed)
}
