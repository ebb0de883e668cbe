package mockserver

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moxuanyu/resumepilot/internal/model/auth"
	"github.com/moxuanyu/resumepilot/internal/model/chat"
	"github.com/moxuanyu/resumepilot/internal/model/resume"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrUnauthorized = errors.New("invalid credentials")
)

// User 开发服务器内存中的用户记录。密码明文保存，仅用于本地开发。
type User struct {
	ID       string
	Username string
	Email    string
	FullName string
	Password string
}

// Public 转换为对外的用户信息。
func (u *User) Public() auth.User {
	return auth.User{ID: u.ID, Username: u.Username, Email: u.Email, FullName: u.FullName}
}

// ConversationState 一次进行中的简历访谈。存储内部持有唯一可变副本，
// 对外只暴露快照，一切修改都经由 Store 方法在锁内完成。
type ConversationState struct {
	ID        string
	UserID    string
	Step      int
	Collected map[string]string
	Messages  []chat.Message
	Completed bool
}

func (c *ConversationState) snapshot() ConversationState {
	out := *c
	out.Messages = append([]chat.Message(nil), c.Messages...)
	out.Collected = make(map[string]string, len(c.Collected))
	for key, value := range c.Collected {
		out.Collected[key] = value
	}
	return out
}

type storedResume struct {
	resume.Resume
	OwnerID string
}

// Store 全部状态保存在内存，进程退出即消失。
type Store struct {
	mu          sync.RWMutex
	usersByName map[string]*User
	usersByID   map[string]*User
	access      map[string]string
	refresh     map[string]string
	resumes     map[string]*storedResume
	convs       map[string]*ConversationState
}

// NewStore bootstraps the in-memory store for the dev server.
func NewStore() *Store {
	return &Store{
		usersByName: make(map[string]*User),
		usersByID:   make(map[string]*User),
		access:      make(map[string]string),
		refresh:     make(map[string]string),
		resumes:     make(map[string]*storedResume),
		convs:       make(map[string]*ConversationState),
	}
}

// CreateUser 注册新用户，用户名或邮箱重复时报告具体原因。
func (s *Store) CreateUser(username, email, password, fullName string) (*User, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var problems []string
	if _, taken := s.usersByName[username]; taken {
		problems = append(problems, "用户名已被占用")
	}
	for _, u := range s.usersByID {
		if u.Email == email {
			problems = append(problems, "邮箱已被注册")
			break
		}
	}
	if len(problems) > 0 {
		return nil, problems
	}

	user := &User{
		ID:       uuid.NewString(),
		Username: username,
		Email:    email,
		FullName: fullName,
		Password: password,
	}
	s.usersByName[username] = user
	s.usersByID[user.ID] = user
	return user, nil
}

// Authenticate 校验用户名密码。
func (s *Store) Authenticate(username, password string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByName[username]
	if !ok || user.Password != password {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// UsernameTaken reports whether the username is already registered.
func (s *Store) UsernameTaken(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, taken := s.usersByName[username]
	return taken
}

// EmailTaken reports whether the email is already registered.
func (s *Store) EmailTaken(email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.usersByID {
		if u.Email == email {
			return true
		}
	}
	return false
}

// IssueTokens 为用户签发一对不透明令牌。
func (s *Store) IssueTokens(userID string) (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	access = uuid.NewString()
	refresh = uuid.NewString()
	s.access[access] = userID
	s.refresh[refresh] = userID
	return access, refresh
}

// RedeemRefresh 用刷新令牌换取新的访问令牌；刷新令牌本身保持有效。
func (s *Store) RedeemRefresh(refreshToken string) (*User, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.refresh[refreshToken]
	if !ok {
		return nil, "", false
	}
	access := uuid.NewString()
	s.access[access] = userID
	return s.usersByID[userID], access, true
}

// RevokeAccess 使访问令牌立即失效，用于登出与令牌过期测试。
func (s *Store) RevokeAccess(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.access, accessToken)
}

// UserByAccess 按访问令牌找用户。
func (s *Store) UserByAccess(accessToken string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.access[accessToken]
	if !ok {
		return nil, false
	}
	user, ok := s.usersByID[userID]
	return user, ok
}

// UpdateUser 更新资料字段。
func (s *Store) UpdateUser(userID string, fullName, email *string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByID[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if fullName != nil {
		user.FullName = *fullName
	}
	if email != nil {
		user.Email = *email
	}
	return user, nil
}

// ChangePassword 校验旧密码后替换。
func (s *Store) ChangePassword(userID, oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByID[userID]
	if !ok {
		return ErrNotFound
	}
	if user.Password != oldPassword {
		return ErrUnauthorized
	}
	user.Password = newPassword
	return nil
}

// CreateResume 新建简历记录。
func (s *Store) CreateResume(ownerID string, draft resume.Draft) resume.Resume {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	record := &storedResume{
		Resume: resume.Resume{
			ID:          uuid.NewString(),
			Title:       draft.Title,
			RawMarkdown: draft.RawMarkdown,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		OwnerID: ownerID,
	}
	if record.Title == "" {
		record.Title = "未命名简历"
	}
	s.resumes[record.ID] = record
	return record.Resume
}

// ListResumes 返回用户的全部简历。
func (s *Store) ListResumes(ownerID string) []resume.Resume {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]resume.Resume, 0, len(s.resumes))
	for _, record := range s.resumes {
		if record.OwnerID == ownerID {
			out = append(out, record.Resume)
		}
	}
	return out
}

// GetResume 按 ID 取简历，校验归属。
func (s *Store) GetResume(ownerID, id string) (resume.Resume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.resumes[id]
	if !ok || record.OwnerID != ownerID {
		return resume.Resume{}, ErrNotFound
	}
	return record.Resume, nil
}

// UpdateResume 更新非空字段并刷新时间戳。
func (s *Store) UpdateResume(ownerID, id string, draft resume.Draft) (resume.Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.resumes[id]
	if !ok || record.OwnerID != ownerID {
		return resume.Resume{}, ErrNotFound
	}
	if draft.Title != "" {
		record.Title = draft.Title
	}
	if draft.RawMarkdown != "" {
		record.RawMarkdown = draft.RawMarkdown
	}
	record.UpdatedAt = time.Now().UTC()
	return record.Resume, nil
}

// DeleteResume 删除记录。
func (s *Store) DeleteResume(ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.resumes[id]
	if !ok || record.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.resumes, id)
	return nil
}

// CreateConversation 开启一次访谈。
func (s *Store) CreateConversation(userID string) ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &ConversationState{
		ID:        uuid.NewString(),
		UserID:    userID,
		Collected: make(map[string]string),
	}
	s.convs[conv.ID] = conv
	return conv.snapshot()
}

// Conversation 按 ID 取访谈状态快照。
func (s *Store) Conversation(id string) (ConversationState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[id]
	if !ok {
		return ConversationState{}, false
	}
	return conv.snapshot(), true
}

// AdvanceConversation 记录用户回答并推进脚本步骤，返回推进后的快照。
func (s *Store) AdvanceConversation(id, userMessage string) (ConversationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return ConversationState{}, false
	}
	if conv.Step < len(interviewSteps) {
		conv.Collected[interviewSteps[conv.Step].Key] = userMessage
	}
	conv.Step++
	if conv.Step >= len(interviewSteps) {
		conv.Completed = true
	}
	return conv.snapshot(), true
}

// AppendMessages 追加访谈消息。对话已结束时静默丢弃。
func (s *Store) AppendMessages(id string, messages ...chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.convs[id]; ok {
		conv.Messages = append(conv.Messages, messages...)
	}
}

// EndConversation 结束并移除访谈。
func (s *Store) EndConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
}
