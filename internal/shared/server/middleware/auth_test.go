package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"whitepaper-console/internal/shared/auth"
)

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth())
	router.OPTIONS("/api/session", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/session", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthGuestHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth())
	router.GET("/api/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userId": UserIDFromContext(c),
			"token":  CallerTokenFromContext(c),
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("X-Guest-Id", "guest1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	if want := `"userId":"guest:guest1"`; !strings.Contains(body, want) {
		t.Fatalf("expected %s in body, got %s", want, body)
	}
	if want := `"token":""`; !strings.Contains(body, want) {
		t.Fatalf("expected empty caller token for guest, got %s", body)
	}
}

func TestAuthBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	token, err := auth.SignJWT(auth.Claims{Sub: "user-1", Email: "u@example.com"})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	router := gin.New()
	router.Use(Auth())
	router.GET("/api/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userId": UserIDFromContext(c),
			"token":  CallerTokenFromContext(c),
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	if want := `"userId":"user-1"`; !strings.Contains(body, want) {
		t.Fatalf("expected %s in body, got %s", want, body)
	}
	if want := `"token":"` + token + `"`; !strings.Contains(body, want) {
		t.Fatalf("expected caller token to be kept, got %s", body)
	}
}

func TestAuthRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth())
	router.GET("/api/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthRejectsMissingIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth())
	router.GET("/api/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
