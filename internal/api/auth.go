package api

import (
	"context"
	"net/http"

	"github.com/moxuanyu/resumepilot/internal/model/auth"
)

// AuthResult 认证相关接口的统一响应信封。
type AuthResult struct {
	Success      bool      `json:"success"`
	User         auth.User `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Errors       []string  `json:"errors,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Register 用户注册。
func (c *Client) Register(ctx context.Context, reg auth.Registration) (AuthResult, error) {
	var result AuthResult
	err := c.JSON(ctx, http.MethodPost, "/api/auth/register", reg, &result)
	return result, err
}

// Login 用户登录。
func (c *Client) Login(ctx context.Context, creds auth.Credentials) (AuthResult, error) {
	var result AuthResult
	err := c.JSON(ctx, http.MethodPost, "/api/auth/login", creds, &result)
	return result, err
}

// RefreshToken 用刷新令牌换取新的访问令牌。走显式令牌通道，
// 不会再触发一次刷新。
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (AuthResult, error) {
	var result AuthResult
	err := c.AuthJSON(ctx, http.MethodPost, "/api/auth/refresh", refreshToken, struct{}{}, &result)
	return result, err
}

// Logout 通知后端失效当前会话。
func (c *Client) Logout(ctx context.Context) error {
	return c.JSON(ctx, http.MethodPost, "/api/auth/logout", struct{}{}, nil)
}

// CurrentUser 查询当前登录用户。
func (c *Client) CurrentUser(ctx context.Context) (auth.User, error) {
	var result AuthResult
	if err := c.JSON(ctx, http.MethodGet, "/api/auth/me", nil, &result); err != nil {
		return auth.User{}, err
	}
	return result.User, nil
}

// UpdateProfile 更新用户资料。
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]string) (auth.User, error) {
	var result AuthResult
	if err := c.JSON(ctx, http.MethodPut, "/api/auth/profile", fields, &result); err != nil {
		return auth.User{}, err
	}
	return result.User, nil
}

// ChangePassword 修改密码。
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	payload := map[string]string{
		"old_password": oldPassword,
		"new_password": newPassword,
	}
	return c.JSON(ctx, http.MethodPost, "/api/auth/change-password", payload, nil)
}

// CheckUsername 检查用户名是否可用。
func (c *Client) CheckUsername(ctx context.Context, username string) (bool, error) {
	var result struct {
		Available bool `json:"available"`
	}
	payload := map[string]string{"username": username}
	if err := c.JSON(ctx, http.MethodPost, "/api/auth/check-username", payload, &result); err != nil {
		return false, err
	}
	return result.Available, nil
}

// CheckEmail 检查邮箱是否可用。
func (c *Client) CheckEmail(ctx context.Context, email string) (bool, error) {
	var result struct {
		Available bool `json:"available"`
	}
	payload := map[string]string{"email": email}
	if err := c.JSON(ctx, http.MethodPost, "/api/auth/check-email", payload, &result); err != nil {
		return false, err
	}
	return result.Available, nil
}
