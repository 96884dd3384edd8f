package service

import (
	"context"
	"fmt"
	"time"
	"topiclearn_backend/internal/config"
	"topiclearn_backend/internal/model"
	"topiclearn_backend/internal/repository"
	"topiclearn_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Redis    *redis.Client
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, rdb *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Redis:    rdb,
		Cfg:      cfg,
	}
}

func (s *AuthService) Register(user *model.User) error {
	_, err := s.UserRepo.FindByUsername(user.Username)
	if err == nil {
		return util.ErrUsernameRegistered
	} else if err != gorm.ErrRecordNotFound {
		return err
	}

	// bcrypt 自带随机盐和常数时间比较
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashedPassword)
	return s.UserRepo.Create(user)
}

func (s *AuthService) Login(username, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByUsername(username)
	if err != nil {
		return "", nil, util.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}

	if err := s.UserRepo.UpdateLastLogin(user.ID); err != nil {
		return "", nil, err
	}

	return token, user, nil
}

// Logout 把令牌的JTI加入Redis黑名单直到令牌自然过期
func (s *AuthService) Logout(ctx context.Context, claims *util.Claims) error {
	if s.Redis == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.Redis.Set(ctx, denylistKey(claims.ID), 1, ttl).Err()
}

// IsRevoked 校验令牌是否已登出
func (s *AuthService) IsRevoked(ctx context.Context, claims *util.Claims) bool {
	if s.Redis == nil || claims.ID == "" {
		return false
	}
	exists, err := s.Redis.Exists(ctx, denylistKey(claims.ID)).Result()
	return err == nil && exists > 0
}

func denylistKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

func (s *AuthService) GetCurrentUser(c *gin.Context) *model.User {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		return nil
	}

	user, _ := s.UserRepo.FindByID(claims.UserID)
	return user
}
