package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moxuanyu/resumepilot/internal/api"
	"github.com/moxuanyu/resumepilot/internal/model/chat"
	"github.com/moxuanyu/resumepilot/internal/service/conversation"
	"github.com/moxuanyu/resumepilot/internal/service/stream"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "开始 AI 访谈，通过对话生成简历",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	ctx := cmd.Context()
	controller := conversation.NewController(a.api, stream.NewClient(a.api), func(message string) {
		fmt.Println()
		fmt.Println(noticeStyle.Render("通知: ") + message)
	})
	controller.SetDeltaListener(func(text string) {
		fmt.Print(assistantStyle.Render(text))
	})

	if err := controller.Start(ctx); err != nil {
		return err
	}
	defer controller.End(ctx)

	printAssistantTail(controller.Snapshot())
	fmt.Println(dateStyle.Render("输入内容回答问题，/history 查看记录，/quit 退出。"))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(titleStyle.Render("你: "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/history":
			printHistory(controller.Snapshot())
			continue
		}

		fmt.Print(assistantStyle.Render("AI: "))
		err := controller.Send(ctx, line)
		fmt.Println()
		if err != nil {
			if !errors.Is(err, conversation.ErrBusy) {
				fmt.Println(errorStyle.Render("发送失败: ") + api.AsError(err).Human())
			}
			continue
		}

		snapshot := controller.Snapshot()
		printSuggestions(snapshot)
		if snapshot.Status == chat.StatusCompleted && snapshot.Artifact != nil {
			fmt.Println()
			fmt.Println(titleStyle.Render(snapshot.Artifact.Title))
			if snapshot.Artifact.ResumeID != "" {
				fmt.Println(idStyle.Render("简历ID: ") + snapshot.Artifact.ResumeID)
				fmt.Println(idStyle.Render("用 resumepilot resume show " + snapshot.Artifact.ResumeID + " 查看"))
			}
			return nil
		}
	}
	return scanner.Err()
}

func printAssistantTail(conv chat.Conversation) {
	if len(conv.Messages) == 0 {
		return
	}
	last := conv.Messages[len(conv.Messages)-1]
	if last.Role == chat.RoleAssistant {
		fmt.Println(assistantStyle.Render("AI: " + last.Content))
	}
}

func printSuggestions(conv chat.Conversation) {
	if len(conv.Messages) == 0 {
		return
	}
	last := conv.Messages[len(conv.Messages)-1]
	if last.Role != chat.RoleAssistant || len(last.Suggestions) == 0 {
		return
	}
	fmt.Println(dateStyle.Render("建议回复: " + strings.Join(last.Suggestions, " / ")))
}

func printHistory(conv chat.Conversation) {
	for _, message := range conv.Messages {
		prefix := "你: "
		style := titleStyle
		switch message.Role {
		case chat.RoleAssistant:
			prefix = "AI: "
			style = assistantStyle
		case chat.RoleSystem:
			prefix = "系统: "
			style = dateStyle
		}
		if message.IsError {
			style = errorStyle
		}
		fmt.Println(style.Render(prefix) + message.Content)
	}
}
