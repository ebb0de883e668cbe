package mockserver

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/moxuanyu/resumepilot/internal/config"
	"github.com/moxuanyu/resumepilot/internal/model/chat"
)

// interviewStep 访谈脚本中的一步，来自固定的信息收集流程。
type interviewStep struct {
	Question string
	Key      string
}

var interviewSteps = []interviewStep{
	{Question: "您好！我是AI简历助手。首先，请告诉我您的姓名？", Key: "name"},
	{Question: "很好！现在请告诉我您的联系方式，包括邮箱和电话？", Key: "contact"},
	{Question: "请描述您的工作经历，包括公司名称、职位和主要职责？", Key: "experience"},
	{Question: "请介绍您的教育背景，包括学校、专业和毕业时间？", Key: "education"},
	{Question: "最后，请列出您的主要技能和专长？", Key: "skills"},
}

const assistantSystemPrompt = "你是一位专业的简历顾问，正在通过一步步提问帮助用户整理简历素材。" +
	"回复保持简短友好，专注于当前要收集的信息，不要跳步。"

// Turn 一轮访谈推进的结果。
type Turn struct {
	Answer      string
	Completed   bool
	Markdown    string
	Title       string
	Suggestions []string
}

// Assistant 驱动简历访谈。默认走脚本化流程；配置了 Ark 凭证时，
// 问题措辞交给大模型润色，脚本仍控制访谈推进。
type Assistant struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewAssistant 构造助手。凭证缺失时返回纯脚本模式，不视为错误。
func NewAssistant(ctx context.Context, cfg config.AIConfig) (*Assistant, error) {
	if !cfg.Enabled() {
		return &Assistant{}, nil
	}

	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Assistant{chain: runnable}, nil
}

// ModelEnabled 指示是否有可用的大模型。
func (a *Assistant) ModelEnabled() bool {
	return a.chain != nil
}

// Greeting 访谈的开场白，即第一个问题。
func (a *Assistant) Greeting() string {
	return interviewSteps[0].Question
}

// NextTurn 根据推进后的访谈状态给出本轮回复。状态推进本身由
// Store.AdvanceConversation 在锁内完成，这里只读快照。
// 所有信息收齐后产出简历 Markdown。
func (a *Assistant) NextTurn(conv ConversationState) Turn {
	if conv.Step < len(interviewSteps) {
		return Turn{Answer: interviewSteps[conv.Step].Question}
	}

	markdown := renderResumeMarkdown(conv.Collected)
	title := conv.Collected["name"]
	if title == "" {
		title = "AI生成的简历"
	} else {
		title += "的简历"
	}

	return Turn{
		Answer:      "太棒了！我已经为您生成了一份专业的简历。简历创建完成！",
		Completed:   true,
		Markdown:    markdown,
		Title:       title,
		Suggestions: []string{"帮我润色一下自我评价", "调整工作经历的描述"},
	}
}

// Phrase 用大模型润色一轮回复；模型不可用或失败时返回脚本原文。
func (a *Assistant) Phrase(ctx context.Context, conv ConversationState, scripted, userMessage string) string {
	if a.chain == nil {
		return scripted
	}

	response, err := a.chain.Invoke(ctx, a.chainInput(conv, scripted, userMessage))
	if err != nil || response.Content == "" {
		log.Printf("[assistant] model invoke failed, using scripted reply: %v", err)
		return scripted
	}
	return response.Content
}

// StreamPhrase 流式生成一轮回复。仅在模型可用时调用。
func (a *Assistant) StreamPhrase(ctx context.Context, conv ConversationState, scripted, userMessage string) (*schema.StreamReader[*schema.Message], error) {
	if a.chain == nil {
		return nil, fmt.Errorf("model unavailable")
	}
	return a.chain.Stream(ctx, a.chainInput(conv, scripted, userMessage))
}

func (a *Assistant) chainInput(conv ConversationState, scripted, userMessage string) map[string]any {
	history := make([]*schema.Message, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	query := fmt.Sprintf("用户刚才回答：%s\n请以友好的口吻向用户提出下一个问题：%s", userMessage, scripted)
	return map[string]any{
		"system":  assistantSystemPrompt,
		"history": history,
		"query":   query,
	}
}

// renderResumeMarkdown 按收集到的素材渲染简历模板。
func renderResumeMarkdown(collected map[string]string) string {
	section := func(key, fallback string) string {
		if value := strings.TrimSpace(collected[key]); value != "" {
			return value
		}
		return fallback
	}

	return fmt.Sprintf(`# %s

## 个人信息
%s

## 工作经历
%s

## 教育背景
%s

## 技能专长
%s

## 自我评价
我是一位积极进取的专业人士，具备扎实的专业技能和丰富的工作经验。善于学习新技术，具有良好的团队协作能力和沟通技巧。致力于在工作中创造价值，追求卓越的工作成果。
`,
		section("name", "姓名"),
		section("contact", "联系方式"),
		section("experience", "工作经历"),
		section("education", "教育背景"),
		section("skills", "技能专长"),
	)
}
