package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/AyishaBeevi/lyvore-backend/internal/database"
	"github.com/AyishaBeevi/lyvore-backend/internal/middleware"
	"github.com/AyishaBeevi/lyvore-backend/internal/models"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type authUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func newAuthUser(u *models.User) authUser {
	return authUser{ID: u.ID.Hex(), Name: u.Name, Email: u.Email, Role: u.Role}
}

func Register(db *mongo.Database, jwtSecret string, accessTTL, refreshTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/register"
		defer handlePanic(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		name := strings.TrimSpace(req.Name)
		if name == "" || strings.TrimSpace(req.Password) == "" {
			respondWithError(c, http.StatusBadRequest, route, "name, email and password are required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		count, err := db.Collection(database.Users).CountDocuments(ctx, bson.M{"email": email})
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "count users"))
			return
		}
		if count > 0 {
			respondWithError(c, http.StatusConflict, route, "email already registered")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "hash password"))
			return
		}

		now := time.Now()
		user := models.User{
			Name:         name,
			Email:        email,
			PasswordHash: string(hash),
			Phone:        strings.TrimSpace(req.Phone),
			Role:         models.RoleUser,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		res, err := db.Collection(database.Users).InsertOne(ctx, user)
		if mongo.IsDuplicateKeyError(err) {
			respondWithError(c, http.StatusConflict, route, "email already registered")
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "insert user"))
			return
		}
		user.ID, _ = res.InsertedID.(primitive.ObjectID)

		tokens, err := issueTokens(ctx, newRefreshTokens(db), &user, jwtSecret, accessTTL, refreshTTL)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		middleware.Logger(c).Info("User registered", zap.String("user_id", user.ID.Hex()))
		c.JSON(http.StatusCreated, gin.H{
			"accessToken":  tokens.AccessToken,
			"refreshToken": tokens.RefreshToken,
			"expiresIn":    tokens.ExpiresIn,
			"user":         newAuthUser(&user),
		})
	}
}

func Login(db *mongo.Database, jwtSecret string, accessTTL, refreshTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/login"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var user models.User
		err := db.Collection(database.Users).FindOne(ctx, bson.M{"email": email}).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "find user"))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			middleware.Logger(c).Info("Login rejected", zap.String("user_id", user.ID.Hex()))
			respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
			return
		}

		tokens, err := issueTokens(ctx, newRefreshTokens(db), &user, jwtSecret, accessTTL, refreshTTL)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		middleware.Logger(c).Info("User logged in", zap.String("user_id", user.ID.Hex()))
		c.JSON(http.StatusOK, gin.H{
			"accessToken":  tokens.AccessToken,
			"refreshToken": tokens.RefreshToken,
			"expiresIn":    tokens.ExpiresIn,
			"user":         newAuthUser(&user),
		})
	}
}

func GetMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/auth/me"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var user models.User
		err := db.Collection(database.Users).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "find user"))
			return
		}

		c.JSON(http.StatusOK, user)
	}
}

func Refresh(db *mongo.Database, jwtSecret string, accessTTL, refreshTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/refresh"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		tokens := db.Collection(database.RefreshTokens)
		store := newRefreshTokens(db)
		lg := middleware.Logger(c)

		var token models.RefreshToken
		err := tokens.FindOne(ctx, bson.M{
			"tokenHash": hashToken(strings.TrimSpace(req.RefreshToken)),
			"revoked":   false,
		}).Decode(&token)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "find refresh token"))
			return
		}

		if time.Now().After(token.ExpiresAt) {
			if err := store.Revoke(ctx, token.ID); err != nil {
				lg.Warn("Failed to revoke expired refresh token",
					zap.String("token_id", token.ID.Hex()),
					zap.Error(err),
				)
			}
			respondWithError(c, http.StatusUnauthorized, route, "refresh token expired")
			return
		}

		var user models.User
		err = db.Collection(database.Users).FindOne(ctx, bson.M{"_id": token.UserID}).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusUnauthorized, route, "user not found")
			return
		}
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "find user"))
			return
		}

		issued, err := rotateRefreshToken(ctx, store, &token, &user, jwtSecret, accessTTL, refreshTTL, lg)
		if errors.Is(err, errRefreshTokenReused) {
			respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"accessToken":  issued.AccessToken,
			"refreshToken": issued.RefreshToken,
			"expiresIn":    issued.ExpiresIn,
			"user":         newAuthUser(&user),
		})
	}
}

func Logout(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/logout"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection(database.RefreshTokens).UpdateOne(ctx, bson.M{
			"tokenHash": hashToken(strings.TrimSpace(req.RefreshToken)),
			"revoked":   false,
		}, bson.M{"$set": bson.M{"revoked": true}})
		if err != nil {
			respondInternal(c, route, errors.Wrap(err, "revoke refresh token"))
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

type issuedTokens struct {
	AccessToken    string
	RefreshToken   string
	RefreshTokenID primitive.ObjectID
	ExpiresIn      int64
}

func issueAccessToken(user *models.User, secret string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"userId": user.ID.Hex(),
		"role":   user.Role,
		"email":  user.Email,
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func issueTokens(ctx context.Context, store refreshTokenStore, user *models.User, secret string, accessTTL, refreshTTL time.Duration) (*issuedTokens, error) {
	now := time.Now()

	accessToken, err := issueAccessToken(user, secret, accessTTL, now)
	if err != nil {
		return nil, errors.Wrap(err, "sign access token")
	}

	plainRefresh, err := generateRefreshString()
	if err != nil {
		return nil, errors.Wrap(err, "generate refresh token")
	}

	refresh := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(plainRefresh),
		ExpiresAt: now.Add(refreshTTL),
		CreatedAt: now,
	}
	if err := store.Insert(ctx, &refresh); err != nil {
		return nil, errors.Wrap(err, "insert refresh token")
	}

	return &issuedTokens{
		AccessToken:    accessToken,
		RefreshToken:   plainRefresh,
		RefreshTokenID: refresh.ID,
		ExpiresIn:      int64(accessTTL.Seconds()),
	}, nil
}

var errRefreshTokenReused = errors.New("refresh token already rotated")

// rotateRefreshToken issues the replacement before retiring old, so a failed
// issue leaves old usable. Only one caller can retire old; a loser's fresh
// token is revoked again.
func rotateRefreshToken(
	ctx context.Context,
	store refreshTokenStore,
	old *models.RefreshToken,
	user *models.User,
	secret string,
	accessTTL, refreshTTL time.Duration,
	lg *zap.Logger,
) (*issuedTokens, error) {
	issued, err := issueTokens(ctx, store, user, secret, accessTTL, refreshTTL)
	if err != nil {
		return nil, err
	}

	rotated, err := store.Rotate(ctx, old.ID, issued.RefreshTokenID)
	if err == nil && rotated {
		return issued, nil
	}

	if revokeErr := store.Revoke(ctx, issued.RefreshTokenID); revokeErr != nil {
		lg.Error("Failed to revoke unused refresh token",
			zap.String("token_id", issued.RefreshTokenID.Hex()),
			zap.Error(revokeErr),
		)
	}
	if err != nil {
		return nil, errors.Wrap(err, "rotate refresh token")
	}
	return nil, errRefreshTokenReused
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
