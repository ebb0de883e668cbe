package mockserver

import (
	"net/http"
	"testing"

	"github.com/moxuanyu/resumepilot/internal/model/auth"
)

func TestRegisterValidation(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server, "/api/auth/register", "", map[string]string{
		"username": "",
		"email":    "not-an-email",
		"password": "123",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var result struct {
		Success bool     `json:"success"`
		Errors  []string `json:"errors"`
	}
	decode(t, resp, &result)
	if result.Success || len(result.Errors) != 3 {
		t.Fatalf("expected 3 validation problems, got %+v", result)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	server, _ := newTestServer(t)
	registerUser(t, server, "zhangsan")

	resp := postJSON(t, server, "/api/auth/register", "", map[string]string{
		"username": "zhangsan",
		"email":    "other@example.com",
		"password": "secret123",
	})
	defer resp.Body.Close()

	var result struct {
		Errors []string `json:"errors"`
	}
	decode(t, resp, &result)
	if resp.StatusCode != http.StatusBadRequest || len(result.Errors) != 1 || result.Errors[0] != "用户名已被占用" {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, result)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	server, _ := newTestServer(t)
	registerUser(t, server, "zhangsan")

	resp := postJSON(t, server, "/api/auth/login", "", map[string]string{
		"username": "zhangsan",
		"password": "wrong",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLoginIssuesFreshTokens(t *testing.T) {
	server, _ := newTestServer(t)
	registerUser(t, server, "zhangsan")

	resp := postJSON(t, server, "/api/auth/login", "", map[string]string{
		"username": "zhangsan",
		"password": "secret123",
	})
	defer resp.Body.Close()

	var result struct {
		Success      bool      `json:"success"`
		AccessToken  string    `json:"access_token"`
		RefreshToken string    `json:"refresh_token"`
		User         auth.User `json:"user"`
	}
	decode(t, resp, &result)
	if !result.Success || result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatalf("tokens missing: %+v", result)
	}
	if result.User.Username != "zhangsan" {
		t.Fatalf("unexpected user: %+v", result.User)
	}
}

func TestRefreshKeepsRefreshTokenValid(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server, "/api/auth/register", "", map[string]string{
		"username": "zhangsan",
		"email":    "zhangsan@example.com",
		"password": "secret123",
	})
	var registered struct {
		RefreshToken string `json:"refresh_token"`
	}
	decode(t, resp, &registered)
	resp.Body.Close()

	// 同一个刷新令牌可以反复换取新的访问令牌。
	for i := 0; i < 2; i++ {
		refreshResp := postJSON(t, server, "/api/auth/refresh", registered.RefreshToken, struct{}{})
		var result struct {
			Success     bool   `json:"success"`
			AccessToken string `json:"access_token"`
		}
		decode(t, refreshResp, &result)
		refreshResp.Body.Close()
		if !result.Success || result.AccessToken == "" {
			t.Fatalf("refresh %d failed: %+v", i, result)
		}
	}
}

func TestRefreshWithBogusToken(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server, "/api/auth/refresh", "not-a-refresh-token", struct{}{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := server.Client().Get(server.URL + "/api/resumes")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	server, _ := newTestServer(t)
	token := registerUser(t, server, "zhangsan")

	logout := postJSON(t, server, "/api/auth/logout", token, struct{}{})
	logout.Body.Close()

	resp := doJSON(t, server, http.MethodGet, "/api/auth/me", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("token should be dead after logout, got %d", resp.StatusCode)
	}
}

func TestCheckUsernameAvailability(t *testing.T) {
	server, _ := newTestServer(t)
	registerUser(t, server, "zhangsan")

	resp := postJSON(t, server, "/api/auth/check-username", "", map[string]string{"username": "zhangsan"})
	var taken struct {
		Available bool `json:"available"`
	}
	decode(t, resp, &taken)
	resp.Body.Close()
	if taken.Available {
		t.Fatal("registered username should not be available")
	}

	resp = postJSON(t, server, "/api/auth/check-username", "", map[string]string{"username": "lisi"})
	var free struct {
		Available bool `json:"available"`
	}
	decode(t, resp, &free)
	resp.Body.Close()
	if !free.Available {
		t.Fatal("unused username should be available")
	}
}

func TestChangePasswordFlow(t *testing.T) {
	server, _ := newTestServer(t)
	token := registerUser(t, server, "zhangsan")

	resp := postJSON(t, server, "/api/auth/change-password", token, map[string]string{
		"old_password": "secret123",
		"new_password": "newsecret456",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change password failed: %d", resp.StatusCode)
	}

	login := postJSON(t, server, "/api/auth/login", "", map[string]string{
		"username": "zhangsan",
		"password": "newsecret456",
	})
	defer login.Body.Close()
	if login.StatusCode != http.StatusOK {
		t.Fatalf("login with new password failed: %d", login.StatusCode)
	}
}
