package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/toybox/backend/internal/interfaces/http/middleware"
)

// asUser injects an authenticated user into the request context
func asUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.JWTUserIDKey, userID.String())
		c.Next()
	}
}

func newOrderTestRouter(h *OrderHandler, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
	r := gin.New()
	r.POST("/orders", asUser(userID), h.Create)
	r.POST("/orders/anonymous", h.Create)
	return r
}

func TestOrderHandler_Create_Validation(t *testing.T) {
	h := NewOrderHandler(nil)
	r := newOrderTestRouter(h, uuid.New())

	t.Run("rejects unauthenticated requests", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/orders/anonymous",
			strings.NewReader(`{"items":[{"toy_id":"`+uuid.NewString()+`","quantity":1}]}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects empty items", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"items":[]}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_VALIDATION")
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/orders",
			strings.NewReader(`{"items":[{"toy_id":"`+uuid.NewString()+`","quantity":0}]}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects malformed toy id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/orders",
			strings.NewReader(`{"items":[{"toy_id":"not-a-uuid","quantity":1}]}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
