package util

import "errors"

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrUsernameRegistered = errors.New("该用户名已被注册")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrSessionNotFound    = errors.New("session not found")
	ErrDigestNotFound     = errors.New("digest not found")
	ErrDigestExists       = errors.New("digest already exists for this week")
	ErrBatchRunning       = errors.New("digest batch already running")
)
