package webserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/slumworks/slumbank/src/bot/components/keyring"
	"github.com/slumworks/slumbank/src/shared/data"
	"github.com/slumworks/slumbank/src/shared/types"
)

type Auth struct {
	rdb       *redis.Client
	db        *gorm.DB
	jwtSecret []byte
}

func NewAuth(rdb *redis.Client, db *gorm.DB, secret []byte) Auth {
	return Auth{rdb: rdb, db: db, jwtSecret: secret}
}

func (a Auth) Challenge(c *gin.Context) {
	var req struct {
		DiscordID string `json:"discordId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	var user types.User
	if err := a.db.First(&user, "discord_id = ?", req.DiscordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"err": "unknown user"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	nonce := uuid.NewString()
	if err := data.SetNonce(c, a.rdb, req.DiscordID, nonce); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

func (a Auth) Verify(c *gin.Context) {
	var req struct {
		DiscordID string `json:"discordId" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	nonce, err := data.GetAndDelNonce(c, a.rdb, req.DiscordID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "challenge expired"})
		return
	}

	var user types.User
	if err := a.db.First(&user, "discord_id = ?", req.DiscordID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "unknown user"})
		return
	}

	if !keyring.Verify(user.PublicKey, req.Signature, []byte(nonce)) {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad signature"})
		return
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"addr": req.DiscordID,
		"exp":  time.Now().Add(1 * time.Hour).Unix(),
	})
	signed, err := tok.SignedString(a.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": signed})
}
