package mockserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/moxuanyu/resumepilot/pkg/httpx"
)

type contextKey string

const userKey contextKey = "mockserver.user"

// AuthHandler 认证相关路由。
type AuthHandler struct {
	store *Store
}

// NewAuthHandler 创建认证处理器。
func NewAuthHandler(store *Store) *AuthHandler {
	return &AuthHandler{store: store}
}

// RegisterRoutes 注册 /auth 下的公开与受保护路由。
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/refresh", h.handleRefresh)
	r.Post("/auth/check-username", h.handleCheckUsername)
	r.Post("/auth/check-email", h.handleCheckEmail)

	r.Group(func(protected chi.Router) {
		protected.Use(h.RequireAuth)
		protected.Post("/auth/logout", h.handleLogout)
		protected.Get("/auth/me", h.handleMe)
		protected.Put("/auth/profile", h.handleProfile)
		protected.Post("/auth/change-password", h.handleChangePassword)
	})
}

// RequireAuth 校验 Bearer 访问令牌并把用户放进请求上下文。
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httpx.RespondError(w, http.StatusUnauthorized, "缺少访问令牌")
			return
		}
		user, ok := h.store.UserByAccess(token)
		if !ok {
			httpx.RespondError(w, http.StatusUnauthorized, "访问令牌无效或已过期")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func currentUser(r *http.Request) *User {
	user, _ := r.Context().Value(userKey).(*User)
	return user
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var problems []string
	if strings.TrimSpace(payload.Username) == "" {
		problems = append(problems, "用户名不能为空")
	}
	if !strings.Contains(payload.Email, "@") {
		problems = append(problems, "邮箱格式不正确")
	}
	if len(payload.Password) < 6 {
		problems = append(problems, "密码至少需要6个字符")
	}
	if len(problems) > 0 {
		httpx.RespondErrors(w, http.StatusBadRequest, problems)
		return
	}

	user, problems := h.store.CreateUser(payload.Username, payload.Email, payload.Password, payload.FullName)
	if len(problems) > 0 {
		httpx.RespondErrors(w, http.StatusBadRequest, problems)
		return
	}

	access, refresh := h.store.IssueTokens(user.ID)
	httpx.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":       true,
		"user":          user.Public(),
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.store.Authenticate(payload.Username, payload.Password)
	if err != nil {
		httpx.RespondErrors(w, http.StatusUnauthorized, []string{"用户名或密码错误"})
		return
	}

	access, refresh := h.store.IssueTokens(user.ID)
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"user":          user.Public(),
		"access_token":  access,
		"refresh_token": refresh,
	})
}

// handleRefresh 刷新令牌放在 Authorization 头里，成功只换发访问令牌。
func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		httpx.RespondError(w, http.StatusUnauthorized, "缺少刷新令牌")
		return
	}

	user, access, ok := h.store.RedeemRefresh(token)
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "刷新令牌无效")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"user":         user.Public(),
		"access_token": access,
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.store.RevokeAccess(bearerToken(r))
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    currentUser(r).Public(),
	})
}

func (h *AuthHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FullName *string `json:"full_name"`
		Email    *string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.store.UpdateUser(currentUser(r).ID, payload.FullName, payload.Email)
	if err != nil {
		httpx.RespondError(w, http.StatusNotFound, "用户不存在")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user.Public(),
	})
}

func (h *AuthHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(payload.NewPassword) < 6 {
		httpx.RespondErrors(w, http.StatusBadRequest, []string{"新密码至少需要6个字符"})
		return
	}

	if err := h.store.ChangePassword(currentUser(r).ID, payload.OldPassword, payload.NewPassword); err != nil {
		httpx.RespondErrors(w, http.StatusBadRequest, []string{"旧密码不正确"})
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *AuthHandler) handleCheckUsername(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"available": !h.store.UsernameTaken(payload.Username),
	})
}

func (h *AuthHandler) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"available": !h.store.EmailTaken(payload.Email),
	})
}
