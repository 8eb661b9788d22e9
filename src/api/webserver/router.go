package webserver

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/slumworks/slumbank/src/api/config"
	"github.com/slumworks/slumbank/src/api/middleware"
	"github.com/slumworks/slumbank/src/shared/ledger"
)

func attachRoutes(r *gin.Engine, cfg config.Config, db *gorm.DB, rdb *redis.Client) {
	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://slumworks.dev"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	store := ledger.New(db, rdb)
	authH := NewAuth(rdb, db, []byte(cfg.JWTSecret))
	ledgerH := NewLedger(store)

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/challenge", authH.Challenge)
		v1.POST("/auth/verify", authH.Verify)

		v1.GET("/leaderboard", ledgerH.Leaderboard)

		secured := v1.Use(middleware.JWT([]byte(cfg.JWTSecret)))
		secured.GET("/users/:id/transactions", ledgerH.Transactions)
	}
}
