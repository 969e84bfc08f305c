package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/songforge/internal/state"
	"github.com/user/songforge/internal/types"
	"github.com/user/songforge/pkg/llm"
)

// analyze turns the opening message into a structured requirement. Known
// emotional themes map straight to a style and mood; anything else keeps the
// message as theme and asks the model for a mood word. An explicit style
// mention in the message always wins.
func (a *Agent) analyze(ctx context.Context, sess *state.Session) (string, error) {
	id := sess.ID()
	message := sess.LastUserMessage()
	if message == "" {
		return "没有找到用户消息", nil
	}
	a.tracker.AddDebugLog(id, "Agent正在分析用户需求: "+message)

	var style, mood, theme, analysis string
	switch {
	case containsAny(message, "爱国", "国家", "祖国"):
		style, mood, theme = "流行", "激昂", "爱国情怀"
		analysis = "我理解您想要一首体现爱国情怀的音乐。这类音乐通常情感激昂，能够激发人们的爱国热情。"
	case containsAny(message, "悲伤", "难过", "失恋"):
		style, mood, theme = "民谣", "悲伤", "悲伤情感"
		analysis = "我感受到您想要表达悲伤或失落的情感。民谣风格很适合传达这种深层的情感体验。"
	case containsAny(message, "快乐", "开心", "庆祝"):
		style, mood, theme = "流行", "快乐", "快乐庆祝"
		analysis = "我听出您想要轻快愉悦的音乐！流行风格能很好地表达这种积极向上的情绪。"
	default:
		style = "流行"
		mood = a.extractMood(ctx, id, message)
		theme = message
		analysis = fmt.Sprintf("我正在分析您的需求：%s。让我为您创作相应的音乐。", message)
	}
	if s, ok := parseStyle(message); ok {
		style = s
	}

	sess.SetRequirement(&types.Requirement{
		Style:    style,
		Mood:     mood,
		Theme:    theme,
		Duration: a.cfg.DefaultDuration,
		Language: "中文",
	})
	a.tracker.AddDebugLog(id, fmt.Sprintf("解析的需求: 风格=%s, 情绪=%s, 主题=%s", style, mood, theme))

	a.reply(id, fmt.Sprintf(`🎵 %s

我将为您创作一首%s风格的音乐，表达%s的情绪。

我的创作计划：
1. 📝 根据您的主题"%s"创作歌词
2. 🎼 生成相应的音乐旋律
3. 🎵 制作完整的音频作品

请稍等，我现在开始为您创作歌词...`, analysis, style, mood, theme))

	if err := a.advance(sess, types.StageCollectingRequirements, "用户需求已分析，准备生成歌词"); err != nil {
		return "", err
	}
	return "需求分析完成，已收集用户需求", nil
}

// parseStyle scans the message for an explicit style mention.
func parseStyle(message string) (string, bool) {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, "说唱", "rap", "hip"):
		return "说唱", true
	case containsAny(lower, "流行", "pop"):
		return "流行", true
	case containsAny(lower, "摇滚", "rock"):
		return "摇滚", true
	case containsAny(lower, "民谣", "folk"):
		return "民谣", true
	case containsAny(lower, "电子", "electronic"):
		return "电子", true
	}
	return "", false
}

// extractMood asks the model for a single mood word; failures fall back to
// 未知 rather than blocking the turn.
func (a *Agent) extractMood(ctx context.Context, id types.SessionID, theme string) string {
	resp, err := a.provider.Complete(ctx, a.prompts.Mood(theme), llm.CompletionParams{MaxTokens: 300})
	if err != nil {
		a.tracker.AddDebugLog(id, "情绪提取失败: "+err.Error())
		return "未知"
	}
	mood := strings.TrimSpace(resp.Content)
	a.tracker.AddDebugLog(id, "LLM提取的情绪: "+mood)
	return mood
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
