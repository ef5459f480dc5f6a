package auth

import (
	"errors"
	"net/http"
	"strings"

	"VoxMind/backend/go/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// DevOwnerID 是开发模式下跳过认证时使用的固定用户。
const DevOwnerID = "dev-user"

const ownerKey = "ownerID"

// OwnerID 从 Gin 上下文中取出已验证的用户 ID。
func OwnerID(c *gin.Context) string {
	return c.GetString(ownerKey)
}

// Middleware 创建一个 Gin 中间件，用于验证 JWT 并提取用户身份。
// 核心服务只信任这里写入的 ownerID，绝不直接使用调用方声明的用户。
// environment 为 "development" 时跳过验证，使用固定的开发用户。
func Middleware(environment string, cfg config.AuthConfig, keys *KeyCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if environment == "development" {
			c.Set(ownerKey, DevOwnerID)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication token"})
			c.Abort()
			return
		}

		// 我们期望的格式是 "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		key, err := keys.Key(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication not configured"})
			c.Abort()
			return
		}

		// 解析和验证 token (exp 由 MapClaims 默认校验)
		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			c.Abort()
			return
		}

		if cfg.Audience != "" && !audienceMatches(claims["aud"], cfg.Audience) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token audience"})
			c.Abort()
			return
		}

		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		c.Set(ownerKey, sub)
		c.Next()
	}
}

// audienceMatches 检查 aud 声明 (字符串或字符串数组) 是否包含期望值。
func audienceMatches(aud interface{}, expected string) bool {
	switch v := aud.(type) {
	case string:
		return v == expected
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s == expected {
				return true
			}
		}
	}
	return false
}
