package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/moxuanyu/resumepilot/internal/api"
	"github.com/moxuanyu/resumepilot/internal/model/auth"
)

// Store "当前登录者是谁"的唯一事实来源：持有令牌、落盘持久化、
// 实现请求拦截所需的静默刷新。注意不要在持锁期间发起网络请求，
// 拦截器会在任意请求途中回调 Refresh。
type Store struct {
	mu      sync.Mutex
	api     *api.Client
	path    string
	session auth.Session
}

// NewStore 构造会话存储并尝试读取已持久化的令牌。
func NewStore(apiClient *api.Client, path string) *Store {
	s := &Store{api: apiClient, path: path}
	if err := s.load(); err != nil {
		log.Printf("[session] ignoring unreadable state file: %v", err)
	}
	return s
}

// Authenticated reports whether a usable session is present.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Authenticated()
}

// User 返回缓存的当前用户。
func (s *Store) User() auth.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.User
}

// AccessToken implements api.TokenProvider.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.AccessToken
}

// Refresh implements api.TokenProvider：用刷新令牌换新的访问令牌。
// 成功只替换访问令牌并更新缓存用户；失败清空全部会话状态，
// 调用方应视作"会话丢失"而非可重试错误。
func (s *Store) Refresh(ctx context.Context) bool {
	s.mu.Lock()
	refreshToken := s.session.RefreshToken
	s.mu.Unlock()

	if refreshToken == "" {
		s.Clear()
		return false
	}

	result, err := s.api.RefreshToken(ctx, refreshToken)
	if err != nil || !result.Success {
		log.Printf("[session] token refresh failed: %v", err)
		s.Clear()
		return false
	}

	s.mu.Lock()
	s.session.AccessToken = result.AccessToken
	s.session.User = result.User
	persistErr := s.persistLocked()
	s.mu.Unlock()

	if persistErr != nil {
		log.Printf("[session] persist after refresh: %v", persistErr)
	}
	return true
}

// Login 登录。失败时返回人类可读的错误列表，不抛错。
func (s *Store) Login(ctx context.Context, creds auth.Credentials) (auth.User, []string) {
	result, err := s.api.Login(ctx, creds)
	if err != nil {
		return auth.User{}, errorStrings(err, "登录失败，请稍后重试")
	}
	if !result.Success {
		return auth.User{}, messagesOr(result.Errors, "登录失败")
	}

	s.store(result)
	return result.User, nil
}

// Register 注册并在成功后直接建立会话。
func (s *Store) Register(ctx context.Context, reg auth.Registration) (auth.User, []string) {
	result, err := s.api.Register(ctx, reg)
	if err != nil {
		return auth.User{}, errorStrings(err, "注册失败，请稍后重试")
	}
	if !result.Success {
		return auth.User{}, messagesOr(result.Errors, "注册失败")
	}

	s.store(result)
	return result.User, nil
}

// Logout 尽力通知后端失效会话（失败忽略），本地状态无条件清空。
func (s *Store) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		log.Printf("[session] backend logout failed: %v", err)
	}
	s.Clear()
}

// Init 进程启动时恢复会话：存在持久化令牌则查询当前用户；
// 失败由拦截器先走一次刷新，仍失败则清空会话。
func (s *Store) Init(ctx context.Context) bool {
	if !s.Authenticated() {
		return false
	}

	user, err := s.api.CurrentUser(ctx)
	if err != nil {
		log.Printf("[session] restore failed: %v", err)
		s.Clear()
		return false
	}

	s.mu.Lock()
	s.session.User = user
	if err := s.persistLocked(); err != nil {
		log.Printf("[session] persist after restore: %v", err)
	}
	s.mu.Unlock()
	return true
}

// Clear 清除内存与磁盘上的全部会话状态。
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = auth.Session{}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		log.Printf("[session] remove state file: %v", err)
	}
}

func (s *Store) store(result api.AuthResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = auth.Session{
		User:         result.User,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}
	if err := s.persistLocked(); err != nil {
		log.Printf("[session] persist: %v", err)
	}
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, &s.session)
}

func (s *Store) persistLocked() error {
	data, err := yaml.Marshal(s.session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	// 令牌文件仅对当前用户可读。
	return os.WriteFile(s.path, data, 0o600)
}

func errorStrings(err error, fallback string) []string {
	apiErr := api.AsError(err)
	if apiErr.Detail != "" {
		return strings.Split(apiErr.Detail, "; ")
	}
	return []string{fallback}
}

func messagesOr(errs []string, fallback string) []string {
	if len(errs) > 0 {
		return errs
	}
	return []string{fallback}
}
