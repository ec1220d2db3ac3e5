package services

import (
	"errors"
	"fmt"
	"os"
	"time"

	"crewboard/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type AuthService interface {
	LoginUser(db *gorm.DB, email, password string) (*models.User, error)
	GenerateToken(db *gorm.DB, user *models.User) (string, string, error)
	RefreshToken(db *gorm.DB, refreshToken string) (string, string, error)
	RevokeToken(db *gorm.DB, refreshToken string) error
}

type AuthServiceImpl struct{}

func NewAuthService() *AuthServiceImpl {
	return &AuthServiceImpl{}
}

func jwtSecret() string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_secret_change_in_production"
	}
	return secret
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func (s *AuthServiceImpl) LoginUser(db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ? AND is_active = ?", email, true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !VerifyPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// GenerateToken issues an access/refresh token pair. The access token carries
// the viewer identity the board needs: user id, display name and role.
func (s *AuthServiceImpl) GenerateToken(db *gorm.DB, user *models.User) (string, string, error) {
	secret := jwtSecret()
	now := time.Now()

	accessClaims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"name":    user.DisplayName(),
		"role":    string(user.Role),
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
		"iss":     "crewboard-backend",
		"aud":     "crewboard-users",
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(secret))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}

	jti, err := uuid.NewV4()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate jti: %w", err)
	}

	refreshExpiry := now.Add(7 * 24 * time.Hour)
	refreshClaims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"type":    "refresh",
		"jti":     jti.String(),
		"iat":     now.Unix(),
		"exp":     refreshExpiry.Unix(),
		"iss":     "crewboard-backend",
		"aud":     "crewboard-users",
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(secret))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	tokenRecord := models.Token{
		ID:           uuid.Must(uuid.NewV4()),
		UserID:       user.ID,
		JTI:          jti,
		RefreshToken: refreshTokenString,
		ExpiresAt:    refreshExpiry,
	}
	if err := db.Create(&tokenRecord).Error; err != nil {
		return "", "", fmt.Errorf("failed to create token record: %w", err)
	}

	return accessTokenString, refreshTokenString, nil
}

func (s *AuthServiceImpl) RefreshToken(db *gorm.DB, refreshToken string) (string, string, error) {
	claims, err := parseRefreshClaims(refreshToken)
	if err != nil {
		return "", "", err
	}

	jti, userID, err := refreshIdentity(claims)
	if err != nil {
		return "", "", err
	}

	var dbToken models.Token
	err = db.Where("jti = ? AND user_id = ? AND expires_at > ?", jti, userID, time.Now()).First(&dbToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", fmt.Errorf("refresh token not found or expired")
		}
		return "", "", fmt.Errorf("database error: %w", err)
	}

	var user models.User
	if err := db.Where("id = ? AND is_active = ?", userID, true).First(&user).Error; err != nil {
		return "", "", fmt.Errorf("user not found: %w", err)
	}

	access, refresh, err := s.GenerateToken(db, &user)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate new tokens: %w", err)
	}

	if err := db.Delete(&dbToken).Error; err != nil {
		return "", "", fmt.Errorf("failed to delete old token: %w", err)
	}

	return access, refresh, nil
}

func (s *AuthServiceImpl) RevokeToken(db *gorm.DB, refreshToken string) error {
	claims, err := parseRefreshClaims(refreshToken)
	if err != nil {
		return err
	}

	jti, _, err := refreshIdentity(claims)
	if err != nil {
		return err
	}

	return db.Where("jti = ?", jti).Delete(&models.Token{}).Error
}

func parseRefreshClaims(refreshToken string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(refreshToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret()), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid refresh token claims")
	}

	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "refresh" {
		return nil, fmt.Errorf("invalid token type")
	}

	return claims, nil
}

func refreshIdentity(claims jwt.MapClaims) (uuid.UUID, uuid.UUID, error) {
	jtiStr, ok := claims["jti"].(string)
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("missing jti in token")
	}
	jti, err := uuid.FromString(jtiStr)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid jti format: %w", err)
	}

	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("missing user_id in token")
	}
	userID, err := uuid.FromString(userIDStr)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid user_id format: %w", err)
	}

	return jti, userID, nil
}
