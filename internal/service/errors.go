package service

import "errors"

// 服务层哨兵错误，处理器据此映射HTTP状态码
var (
	// ErrFileNotFound 文件不存在（或已删除后对公开查询不可见）
	ErrFileNotFound = errors.New("file not found")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyDeleted 文件已被删除
	ErrAlreadyDeleted = errors.New("file already deleted")
	// ErrInvalidStatus 非法的目标状态
	ErrInvalidStatus = errors.New("invalid status")
	// ErrSameStatus 目标状态与当前状态相同（显式拒绝而非静默成功）
	ErrSameStatus = errors.New("file already has this status")
	// ErrMissingPassword 缺少必填的密码字段
	ErrMissingPassword = errors.New("password is required")
	// ErrNotProtected 文件未设置密码保护
	ErrNotProtected = errors.New("file is not password protected")
	// ErrCodeExhausted 短码生成重试次数耗尽
	ErrCodeExhausted = errors.New("short code generation exhausted retries")
	// ErrUpstream 外部依赖（Blob存储/邮件）失败，可重试
	ErrUpstream = errors.New("upstream provider failure")
	// ErrNoFiles 请求中没有任何文件
	ErrNoFiles = errors.New("no files uploaded")
)
