package auth

// User 当前登录用户的公开信息。
type User struct {
	ID       string `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
	FullName string `json:"full_name,omitempty" yaml:"full_name,omitempty"`
}

// DisplayName returns the name shown in greetings, falling back to the username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// Credentials carries a login request.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration carries a register request.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// Session 持有当前会话的用户与令牌，两个令牌作为独立字符串持久化。
type Session struct {
	User         User   `yaml:"user"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
}

// Authenticated reports whether the session carries a usable access token.
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}
