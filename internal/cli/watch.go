package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moxuanyu/resumepilot/internal/service/notify"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "订阅简历创建通知，Ctrl+C 退出",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	subscriber := notify.NewSubscriber(a.api.BaseURL(), a.session)
	fmt.Println(dateStyle.Render("已连接，等待通知..."))

	return subscriber.Run(cmd.Context(), func(event notify.Event) {
		if event.Type != "resume_created" {
			fmt.Println(noticeStyle.Render("事件: ") + event.Type)
			return
		}
		created, decodeErr := event.DecodeResumeCreated()
		if decodeErr != nil {
			fmt.Println(errorStyle.Render("通知解析失败: ") + decodeErr.Error())
			return
		}
		fmt.Println(successStyle.Render("新简历: ") + created.Title)
		fmt.Println(idStyle.Render("简历ID: ") + created.ResumeID)
	})
}
