package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/AyishaBeevi/lyvore-backend/internal/models"
)

const (
	userIDKey = "userId"
	roleKey   = "role"
	claimsKey = "claims"
)

// AuthGuard validates the bearer access token and stores the caller's id and
// role in the gin context. With allowedRoles set, other roles get 403.
func AuthGuard(secret string, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := Logger(c)

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
			return
		}

		parts := strings.Split(raw, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			lg.Debug("Invalid authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			lg.Debug("Token validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}

		userIDValue, _ := claims["userId"].(string)
		userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(userIDValue))
		if err != nil {
			lg.Debug("Token carries no usable userId")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}

		role, _ := claims["role"].(string)
		if len(allowedRoles) > 0 {
			match := false
			for _, r := range allowedRoles {
				if role == r {
					match = true
					break
				}
			}
			if !match {
				lg.Info("Forbidden role", zap.String("user_id", userID.Hex()), zap.String("role", role))
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "forbidden"})
				return
			}
		}

		c.Set(claimsKey, claims)
		c.Set(userIDKey, userID)
		c.Set(roleKey, role)
		c.Next()
	}
}

// UserAuth admits any authenticated caller.
func UserAuth(secret string) gin.HandlerFunc {
	return AuthGuard(secret)
}

func AdminAuth(secret string) gin.HandlerFunc {
	return AuthGuard(secret, models.RoleAdmin)
}

// UserID returns the id stored by AuthGuard.
func UserID(c *gin.Context) (primitive.ObjectID, bool) {
	value, ok := c.Get(userIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := value.(primitive.ObjectID)
	return id, ok
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString(roleKey) == models.RoleAdmin
}
