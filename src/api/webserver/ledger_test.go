package webserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/slumworks/slumbank/src/api/config"
	"github.com/slumworks/slumbank/src/shared/ledger"
	"github.com/slumworks/slumbank/src/shared/types"
)

const testSecret = "test-secret"

func setupTestRouter(t *testing.T) (*gin.Engine, *ledger.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store := ledger.New(db, nil)
	require.NoError(t, store.Migrate())

	router := New(config.Config{JWTSecret: testSecret}, db, nil)
	return router, store
}

func seedUser(t *testing.T, store *ledger.Store, id, username string, balance int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, &types.User{
		DiscordID:           id,
		Username:            username,
		PublicKey:           "pk-" + id,
		EncryptedPrivateKey: "enc-" + id,
	}))
	require.NoError(t, store.SetBalance(ctx, id, balance))
}

func bearerToken(t *testing.T, addr string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"addr": addr,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestHealthz(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestLeaderboardOrdering(t *testing.T) {
	router, store := setupTestRouter(t)
	seedUser(t, store, "100", "alice", 500)
	seedUser(t, store, "200", "bob", 900)
	seedUser(t, store, "300", "carol", 100)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/leaderboard", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Leaderboard []struct {
			Username string `json:"username"`
			Balance  int64  `json:"balance"`
		} `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Leaderboard, 3)
	require.Equal(t, "bob", body.Leaderboard[0].Username)
	require.Equal(t, int64(900), body.Leaderboard[0].Balance)
	require.Equal(t, "carol", body.Leaderboard[2].Username)
}

func TestLeaderboardSanitizesUsernames(t *testing.T) {
	router, store := setupTestRouter(t)
	seedUser(t, store, "100", `<script>alert(1)</script>mallory`, 100)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/leaderboard", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Leaderboard []struct {
			Username string `json:"username"`
		} `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Leaderboard, 1)
	require.Equal(t, "mallory", body.Leaderboard[0].Username)
}

func TestLeaderboardRejectsBadLimit(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/leaderboard?limit=9999", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransactionsRequireAuth(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/users/100/transactions", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransactionsForbiddenForOtherUser(t *testing.T) {
	router, store := setupTestRouter(t)
	seedUser(t, store, "100", "alice", 0)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/users/100/transactions", nil)
	req.Header.Set("Authorization", bearerToken(t, "200"))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestTransactionsListsUserHistory(t *testing.T) {
	router, store := setupTestRouter(t)
	seedUser(t, store, "100", "alice", 0)

	require.NoError(t, store.RecordTransaction(context.Background(), &types.Transaction{
		ID:        uuid.NewString(),
		FromUser:  "100",
		ToUser:    "AUCTION_SYSTEM",
		Amount:    75,
		Kind:      "auction_win",
		Memo:      "Auction win <b>payment</b>",
		Signature: "system",
		CreatedAt: time.Now(),
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/users/100/transactions", nil)
	req.Header.Set("Authorization", bearerToken(t, "100"))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Transactions []struct {
			From   string `json:"from"`
			To     string `json:"to"`
			Amount int64  `json:"amount"`
			Kind   string `json:"kind"`
			Memo   string `json:"memo"`
		} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Transactions, 1)
	require.Equal(t, "auction_win", body.Transactions[0].Kind)
	require.Equal(t, int64(75), body.Transactions[0].Amount)
	require.NotContains(t, body.Transactions[0].Memo, "<b>")
}
