package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"supportchat/backend/internal/models"

	"github.com/gin-gonic/gin"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Identity is the resolved result of a connection credential: who the user
// is and which side of the conversation they sit on.
type Identity struct {
	UserID      string
	DisplayName string
	Role        string
}

var errInvalidToken = errors.New("invalid token")

// generateJWT mints a bearer token carrying the chat identity claims.
func (h *Handler) generateJWT(id Identity) (string, error) {
	claims := jwt.MapClaims{
		"user_id": id.UserID,
		"name":    id.DisplayName,
		"role":    id.Role,
		"exp":     time.Now().Add(h.Cfg.JWT.TTL).Unix(),
		"iss":     h.Cfg.JWT.Issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.Cfg.JWT.Secret))
}

// resolveIdentity validates a bearer token and extracts the chat identity.
// Any failure is a hard rejection: the caller never admits the connection.
func (h *Handler) resolveIdentity(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(h.Cfg.JWT.Secret), nil
	})
	if err != nil || !token.Valid {
		return Identity{}, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	name, _ := claims["name"].(string)
	role, _ := claims["role"].(string)
	if userID == "" || (role != models.RoleCustomer && role != models.RoleOperator) {
		return Identity{}, errInvalidToken
	}
	if name == "" {
		name = "Anonymous"
	}
	return Identity{UserID: userID, DisplayName: name, Role: role}, nil
}

// bearerFromRequest pulls the credential from the Authorization header or,
// for browser WebSocket clients that cannot set headers, the token query
// parameter.
func bearerFromRequest(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return c.Query("token")
}

// CreateSession mints a chat token for a known or new user. In production the
// storefront's own auth issues these tokens; this endpoint exists for local
// development and the test harness.
func (h *Handler) CreateSession(c *gin.Context) {
	var req struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName" binding:"required"`
		Role        string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "displayName and role are required"})
		return
	}
	if req.Role != models.RoleCustomer && req.Role != models.RoleOperator {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be customer or operator"})
		return
	}

	user, err := h.Storage.FindOrCreateUser(&models.User{
		ID:          req.UserID,
		DisplayName: req.DisplayName,
		Role:        req.Role,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	if user.DisplayName != req.DisplayName {
		// Returning user with a new name: refresh the directory entry.
		user.DisplayName = req.DisplayName
		if err := h.Storage.SaveUser(user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
			return
		}
	}

	token, err := h.generateJWT(Identity{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "userId": user.ID})
}
