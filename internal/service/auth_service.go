package service

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"go-file-share/internal/model"
	"go-file-share/internal/repository"
	"go-file-share/pkg/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// 处理认证相关业务逻辑
type AuthService struct {
	userRepo *repository.UserRepository
}

// 创建一个新的认证服务实例
func NewAuthService(userRepo *repository.UserRepository) *AuthService {
	return &AuthService{
		userRepo: userRepo,
	}
}

// 用户注册请求
type RegisterRequest struct {
	Fullname string `json:"fullname" binding:"required,min=6"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// 用户登陆请求（邮箱或用户名二选一）
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// 注册新用户
func (s *AuthService) Register(req RegisterRequest) (*model.User, error) {
	if !emailPattern.MatchString(req.Email) {
		return nil, errors.New("invalid email format")
	}

	// 检查邮箱是否已存在
	existing, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New("email already in use")
	}

	// 加密密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// 用户名 = 全名前缀 + uuid片段
	cleaned := strings.ToLower(strings.Join(strings.Fields(req.Fullname), ""))
	prefix := cleaned
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	username := prefix + uuid.NewString()[:5]

	user := &model.User{
		Fullname:   req.Fullname,
		Username:   username,
		Email:      req.Email,
		Password:   string(hashedPassword),
		ProfilePic: fmt.Sprintf("https://avatar.iran.liara.run/public/%d", rand.Intn(100)+1),
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	return user, nil
}

// 用户登陆
func (s *AuthService) Login(req LoginRequest) (string, *model.User, error) {
	var user *model.User
	var err error
	if req.Email != "" {
		user, err = s.userRepo.FindByEmail(req.Email)
	} else {
		user, err = s.userRepo.FindByUsername(req.Username)
	}
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, errors.New("invalid email or username")
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return "", nil, errors.New("invalid password")
	}

	// 生成JWT令牌
	token, err := utils.GenerateToken(user.ID)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	if err := s.userRepo.UpdateLastLogin(user.ID, now); err == nil {
		user.LastLogin = &now
	}

	return token, user, nil
}
