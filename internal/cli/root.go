package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/moxuanyu/resumepilot/internal/api"
	"github.com/moxuanyu/resumepilot/internal/config"
	"github.com/moxuanyu/resumepilot/internal/service/session"
)

var (
	flagAPIBase string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "resumepilot",
	Short: "AI 简历助手命令行客户端",
	Long: `resumepilot 是简历生成服务的命令行客户端。

它支持账号注册登录、简历的增删改查与导出、AI 访谈式简历生成
（流式输出）以及简历创建通知订阅。

快速开始:
  resumepilot login <用户名>        # 登录
  resumepilot chat                  # 开始 AI 访谈生成简历
  resumepilot resume list           # 查看简历列表
  resumepilot resume export <id>    # 导出 PDF`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 运行根命令，ctx 取消时所有网络操作随之中断。
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("错误: ")+err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIBase, "api", "", "服务端地址 (默认读取 RESUME_API_URL)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "打印请求日志")
}

// app 聚合一次命令执行所需的客户端状态。
type app struct {
	cfg     *config.Config
	api     *api.Client
	session *session.Store
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagAPIBase != "" {
		cfg.Client.BaseURL = config.ResolveBaseURL(flagAPIBase, "")
	}
	if flagVerbose {
		cfg.Client.Verbose = true
	}

	client := api.New(cfg.Client.BaseURL,
		api.WithTimeout(time.Duration(cfg.Client.TimeoutSecs)*time.Second),
		api.WithVerbose(cfg.Client.Verbose),
	)
	store := session.NewStore(client, cfg.Client.StateFile)
	client.SetTokenProvider(store)

	return &app{cfg: cfg, api: client, session: store}, nil
}

// requireLogin 在需要认证的命令里做前置检查。
func (a *app) requireLogin() error {
	if !a.session.Authenticated() {
		return fmt.Errorf("尚未登录，请先执行 resumepilot login")
	}
	return nil
}

func (a *app) autosaveDelay() time.Duration {
	return time.Duration(a.cfg.Client.AutosaveSecs) * time.Second
}
