package handler

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"vendra-system/internal/database/models"
	"vendra-system/internal/utils"
)

type UserHandler struct {
	db       *gorm.DB
	redis    *redis.Client
	tokenTTL time.Duration
}

func NewUserHandler(db *gorm.DB, redisClient *redis.Client, tokenTTL time.Duration) *UserHandler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &UserHandler{
		db:       db,
		redis:    redisClient,
		tokenTTL: tokenTTL,
	}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Fullname string `json:"fullname"`
}

type AuthenticateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	User      *models.User `json:"user,omitempty"`
}

func (s *UserHandler) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return &AuthResponse{Success: false, Message: "username, email and password are required"}, nil
	}

	var existing models.User
	if err := s.db.Where("username = ? OR email = ?", req.Username, req.Email).First(&existing).Error; err == nil {
		return &AuthResponse{Success: false, Message: "username or email already taken"}, nil
	} else if err != gorm.ErrRecordNotFound {
		return &AuthResponse{Success: false, Message: "database error"}, err
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return &AuthResponse{Success: false, Message: "error hashing password"}, err
	}

	newUser := models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(pwHash),
		Fullname: req.Fullname,
		IsActive: true,
	}

	if err := s.db.Create(&newUser).Error; err != nil {
		return &AuthResponse{Success: false, Message: "error creating user"}, err
	}

	token, exp, err := utils.GenerateToken(newUser.ID, newUser.Username, s.tokenTTL)
	if err != nil {
		return &AuthResponse{Success: false, Message: "error generating token"}, err
	}

	newUser.Password = ""
	return &AuthResponse{
		Success:   true,
		Message:   "user registered successfully",
		Token:     token,
		ExpiresAt: &exp,
		User:      &newUser,
	}, nil
}

func (s *UserHandler) Authenticate(ctx context.Context, req *AuthenticateRequest) (*AuthResponse, error) {
	if req.Username == "" || req.Password == "" {
		return &AuthResponse{Success: false, Message: "username and password are required"}, nil
	}

	var user models.User
	if err := s.db.Where("username = ? AND is_active = ?", req.Username, true).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &AuthResponse{Success: false, Message: "invalid username or password"}, nil
		}
		return &AuthResponse{Success: false, Message: "database error"}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return &AuthResponse{Success: false, Message: "invalid username or password"}, nil
	}

	token, exp, err := utils.GenerateToken(user.ID, user.Username, s.tokenTTL)
	if err != nil {
		return &AuthResponse{Success: false, Message: "error generating token"}, err
	}

	now := time.Now()
	user.LastLogin = &now
	s.db.Save(&user)

	user.Password = ""
	return &AuthResponse{
		Success:   true,
		Message:   "login successful",
		Token:     token,
		ExpiresAt: &exp,
		User:      &user,
	}, nil
}
