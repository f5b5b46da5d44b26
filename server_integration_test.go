package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("test-secret")
	initDB()
	tmp := t.TempDir()
	_ = os.Setenv("RECEIPT_BASE", tmp)
	r := gin.Default()
	setupRoutes(r)
	return r
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)
	nano := time.Now().UnixNano()
	username := fmt.Sprintf("mgr%d", nano)

	// 1. Register manager
	regBody, _ := json.Marshal(map[string]string{"username": username, "pin": "4321"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 2. Login
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	// 3. Register a member
	memBody, _ := json.Marshal(map[string]any{
		"full_name":     "Flow Member",
		"short_name":    fmt.Sprintf("flow%d", nano),
		"resident_type": "room",
		"active_from":   "2098-01",
	})
	resp = performRequest(r, http.MethodPost, "/members", bytes.NewBuffer(memBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("create member failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var member map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &member)
	memberID := int(member["id"].(float64))
	if memberID == 0 {
		t.Fatalf("missing member id in response: %+v", member)
	}

	// 4. Record contribution (twice; must be cumulative)
	for _, amt := range []int64{10000, 5000} {
		cBody, _ := json.Marshal(map[string]any{"month": "2098-02", "member_id": memberID, "amount_cents": amt})
		resp = performRequest(r, http.MethodPost, "/contributions", bytes.NewBuffer(cBody), token, "application/json")
		if resp.Code != 200 {
			t.Fatalf("contribution failed status=%d body=%s", resp.Code, resp.Body.String())
		}
	}
	var contrib map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &contrib)
	if got := int64(contrib["amount_cents"].(float64)); got != 15000 {
		t.Fatalf("contribution not cumulative: %d", got)
	}

	// 5. Record meals
	mealBody, _ := json.Marshal(map[string]any{"month": "2098-02", "member_id": memberID, "day": 3, "count": 2})
	resp = performRequest(r, http.MethodPost, "/meals", bytes.NewBuffer(mealBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("meal failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 6. Record an immediate expense (fund was credited by the contribution)
	expBody, _ := json.Marshal(map[string]any{"month": "2098-02", "day": 3, "amount_cents": 5000, "category": "groceries", "title": "rice"})
	resp = performRequest(r, http.MethodPost, "/expenses", bytes.NewBuffer(expBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("expense failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 7. Summary
	resp = performRequest(r, http.MethodGet, "/summary/2098-02", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("summary failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 8. Balances
	resp = performRequest(r, http.MethodGet, "/balances/2098-02", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("balances failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 9. Carryforward
	resp = performRequest(r, http.MethodGet, "/carryforward/2098-02", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("carryforward failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 10. Fund balance
	resp = performRequest(r, http.MethodGet, "/fund", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("fund failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 11. Archive requires administrator role; a plain manager gets 403.
	archBody, _ := json.Marshal(map[string]string{"confirm_short_name": fmt.Sprintf("flow%d", nano)})
	resp = performRequest(r, http.MethodPost, fmt.Sprintf("/members/%d/archive", memberID), bytes.NewBuffer(archBody), token, "application/json")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin archive, got %d body=%s", resp.Code, resp.Body.String())
	}

	// 12. Unauthorized access to protected endpoint should be 401
	unauth := performRequest(r, http.MethodGet, "/members", nil, "", "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized list members got %d", unauth.Code)
	}
}

func TestMigrateCommand(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	initDB()
}
