package webserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"github.com/slumworks/slumbank/src/shared/ledger"
)

type Ledger struct {
	store     *ledger.Store
	sanitizer *bluemonday.Policy
}

func NewLedger(store *ledger.Store) Ledger {
	return Ledger{
		store:     store,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (l Ledger) Leaderboard(c *gin.Context) {
	limit := 10
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"err": "bad limit"})
			return
		}
		limit = n
	}

	entries, err := l.store.TopBalances(c, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"username": l.sanitizer.Sanitize(e.Username),
			"balance":  e.Balance,
		})
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": out})
}

func (l Ledger) Transactions(c *gin.Context) {
	id := c.Param("id")
	if c.GetString("addr") != id {
		c.JSON(http.StatusForbidden, gin.H{"err": "not authorised for this user"})
		return
	}

	txs, err := l.store.UserTransactions(c, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(txs))
	for _, tx := range txs {
		out = append(out, gin.H{
			"id":        tx.ID,
			"from":      tx.FromUser,
			"to":        tx.ToUser,
			"amount":    tx.Amount,
			"kind":      tx.Kind,
			"memo":      l.sanitizer.Sanitize(tx.Memo),
			"createdAt": tx.CreatedAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}
