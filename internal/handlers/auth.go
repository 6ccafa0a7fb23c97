package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"todoapp/internal/auth"
	"todoapp/internal/models"
)

// UserAccounts is the slice of the credential store the auth handlers need.
type UserAccounts interface {
	Create(ctx context.Context, email, password string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	VerifyPassword(user *models.User, password string) error
}

// TokenService is the token core as seen from the HTTP layer.
type TokenService interface {
	Issue(ctx context.Context, user *models.User) (*auth.TokenPair, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
}

type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenRequest struct {
	Token        string `json:"token" binding:"required"`
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// AuthResult is the response body of every AutManagement endpoint.
type AuthResult struct {
	Success      bool     `json:"success"`
	Token        string   `json:"token,omitempty"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

func authFailure(errs ...string) AuthResult {
	return AuthResult{Success: false, Errors: errs}
}

func Register(users UserAccounts, tokens TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		user, err := users.Create(c.Request.Context(), normalizeEmail(req.Email), req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrEmailTaken) {
				log.Println("[AUTH] [ERROR] register email exists")
				c.JSON(http.StatusBadRequest, authFailure("Email already exist"))
				return
			}
			log.Println("[AUTH] [ERROR] register create failed:", err)
			c.JSON(http.StatusInternalServerError, authFailure(err.Error()))
			return
		}

		pair, err := tokens.Issue(c.Request.Context(), user)
		if err != nil {
			log.Println("[AUTH] [ERROR] register token issue failed:", err)
			c.JSON(http.StatusInternalServerError, authFailure("token generation failed"))
			return
		}

		log.Println("[AUTH] [INFO] user registered:", user.Email)
		c.JSON(http.StatusOK, AuthResult{
			Success:      true,
			Token:        pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		})
	}
}

func Login(users UserAccounts, tokens TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		// Unknown email and wrong password produce the same answer so the
		// response does not reveal which one was off.
		user, err := users.FindByEmail(c.Request.Context(), normalizeEmail(req.Email))
		if err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				log.Println("[AUTH] [ERROR] login unknown email")
				c.JSON(http.StatusBadRequest, authFailure("Invalid authentication request"))
				return
			}
			log.Println("[AUTH] [ERROR] login lookup failed:", err)
			c.JSON(http.StatusInternalServerError, authFailure("db error"))
			return
		}

		if err := users.VerifyPassword(user, req.Password); err != nil {
			log.Println("[AUTH] [ERROR] login invalid credentials")
			c.JSON(http.StatusBadRequest, authFailure("Invalid authentication request"))
			return
		}

		pair, err := tokens.Issue(c.Request.Context(), user)
		if err != nil {
			log.Println("[AUTH] [ERROR] login token issue failed:", err)
			c.JSON(http.StatusInternalServerError, authFailure("token generation failed"))
			return
		}

		log.Println("[AUTH] [INFO] user login succeeded:", user.Email)
		c.JSON(http.StatusOK, AuthResult{
			Success:      true,
			Token:        pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		})
	}
}

func RefreshToken(tokens TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		pair, err := tokens.Refresh(c.Request.Context(), req.Token, req.RefreshToken)
		if err != nil {
			if isRefreshFailure(err) {
				log.Println("[AUTH] [ERROR] refresh rejected:", err)
				c.JSON(http.StatusBadRequest, authFailure(err.Error()))
				return
			}
			log.Println("[AUTH] [ERROR] refresh failed:", err)
			c.JSON(http.StatusInternalServerError, authFailure("internal server error"))
			return
		}

		log.Println("[AUTH] [INFO] token pair rotated")
		c.JSON(http.StatusOK, AuthResult{
			Success:      true,
			Token:        pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		})
	}
}

func Logout(tokens TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LogoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if err := tokens.Revoke(c.Request.Context(), req.RefreshToken); err != nil {
			if errors.Is(err, auth.ErrRefreshTokenNotFound) {
				c.JSON(http.StatusBadRequest, authFailure("invalid refresh token"))
				return
			}
			log.Println("[AUTH] [ERROR] logout failed:", err)
			c.JSON(http.StatusInternalServerError, authFailure("db error"))
			return
		}

		log.Println("[AUTH] [INFO] refresh token revoked")
		c.JSON(http.StatusOK, AuthResult{Success: true})
	}
}

// isRefreshFailure reports whether err is an expected, user-driven refresh
// outcome. Anything else is treated as a fault.
func isRefreshFailure(err error) bool {
	for _, known := range []error{
		auth.ErrInvalidToken,
		auth.ErrTokenNotYetExpired,
		auth.ErrRefreshTokenNotFound,
		auth.ErrRefreshTokenExpired,
		auth.ErrRefreshTokenAlreadyUsed,
		auth.ErrRefreshTokenRevoked,
		auth.ErrTokenMismatch,
		auth.ErrUserNotFound,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
