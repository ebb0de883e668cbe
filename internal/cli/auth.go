package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/moxuanyu/resumepilot/internal/model/auth"
)

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "登录并保存会话",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "注册新账号",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

var registerEmail string
var registerFullName string

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "退出登录并清除本地会话",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "显示当前登录用户",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "邮箱地址 (必填)")
	registerCmd.Flags().StringVar(&registerFullName, "full-name", "", "姓名")
	_ = registerCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	username := ""
	if len(args) == 1 {
		username = args[0]
	} else {
		username, err = promptLine("用户名: ")
		if err != nil {
			return err
		}
	}
	if username == "" {
		return fmt.Errorf("用户名不能为空")
	}

	password, err := promptPassword("密码: ")
	if err != nil {
		return err
	}

	user, problems := a.session.Login(cmd.Context(), auth.Credentials{
		Username: username,
		Password: password,
	})
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	fmt.Println(successStyle.Render("登录成功: ") + user.DisplayName())
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	password, err := promptPassword("密码: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("确认密码: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("两次输入的密码不一致")
	}

	user, problems := a.session.Register(cmd.Context(), auth.Registration{
		Username: args[0],
		Email:    registerEmail,
		Password: password,
		FullName: registerFullName,
	})
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	fmt.Println(successStyle.Render("注册成功: ") + user.DisplayName())
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	a.session.Logout(cmd.Context())
	fmt.Println("已退出登录")
	return nil
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}
	if !a.session.Init(cmd.Context()) {
		return fmt.Errorf("会话已失效，请重新登录")
	}

	user := a.session.User()
	fmt.Println(titleStyle.Render(user.DisplayName()))
	fmt.Println(idStyle.Render("用户名: ") + user.Username)
	fmt.Println(idStyle.Render("邮箱:   ") + user.Email)
	return nil
}

func promptLine(label string) (string, error) {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword 读取密码，终端下不回显；重定向输入时退回普通读行。
func promptPassword(label string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return promptLine(label)
	}

	fmt.Print(label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
