package agent

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/user/songforge/internal/prompt"
	"github.com/user/songforge/internal/state"
	"github.com/user/songforge/internal/types"
	"github.com/user/songforge/pkg/llm"
)

const (
	actionAnalyzeRequirements = "analyze_requirements"
	actionGenerateLyrics      = "generate_lyrics"
	actionPresentLyrics       = "present_lyrics"
	actionWaitForReview       = "wait_for_review"
	actionGenerateMusic       = "generate_music"
	actionComplete            = "complete"
)

// minLyricsRunes is the shortest draft accepted from the model.
const minLyricsRunes = 20

// decide maps the current stage to the next action. Pure: no session writes,
// no emits.
func decide(stage types.Stage, approved bool) string {
	switch stage {
	case types.StageInit:
		return actionAnalyzeRequirements
	case types.StageCollectingRequirements:
		return actionGenerateLyrics
	case types.StageGeneratingLyrics:
		return actionPresentLyrics
	case types.StageReviewingLyrics:
		if approved {
			return actionGenerateMusic
		}
		return actionWaitForReview
	case types.StagePreparingGeneration:
		return actionGenerateMusic
	case types.StageGeneratingMusic:
		return actionWaitForReview
	case types.StageCompleted, types.StageFailed:
		return actionComplete
	}
	return actionAnalyzeRequirements
}

// perform executes one action and records its outcome. Errors are captured
// in the action log and emitted, never returned; the loop keeps control.
func (a *Agent) perform(ctx context.Context, sess *state.Session, action string) {
	start := time.Now()
	result, err := a.act(ctx, sess, action)
	if err != nil && result == "" {
		result = "执行失败: " + err.Error()
	}

	entry := types.ActionEntry{
		Action:   action,
		Result:   result,
		Duration: time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	sess.AddAction(entry)
	a.emitter.EmitAction(sess.ID(), action, nil, result, err)
}

func (a *Agent) act(ctx context.Context, sess *state.Session, action string) (string, error) {
	switch action {
	case actionAnalyzeRequirements:
		return a.analyze(ctx, sess)
	case actionGenerateLyrics:
		return a.composeLyrics(ctx, sess)
	case actionPresentLyrics:
		return a.presentLyrics(sess)
	case actionWaitForReview:
		return "等待用户审核歌词", nil
	case actionGenerateMusic:
		if err := a.runGeneration(ctx, sess); err != nil {
			return "", err
		}
		return "音乐生成完成", nil
	case actionComplete:
		if sess.Stage() != types.StageCompleted && sess.Stage() != types.StageFailed {
			if err := a.advance(sess, types.StageCompleted, "任务完成"); err != nil {
				return "", err
			}
		}
		return "任务完成", nil
	}
	return "未知行动", nil
}

// presentLyrics surfaces the latest draft in the conversation.
func (a *Agent) presentLyrics(sess *state.Session) (string, error) {
	latest, ok := sess.LatestLyrics()
	if !ok {
		return "没有找到歌词", nil
	}
	a.reply(sess.ID(), fmt.Sprintf("这是为您创作的歌词：\n\n%s\n\n您觉得怎么样？", latest.Content))
	return "歌词已展示", nil
}

// composeLyrics drafts the first lyrics version from the collected
// requirement. Model failures retry up to the budget; if every attempt died
// in transit the canned fallback template keeps the session moving, while a
// content rejection ends the turn so the user can rephrase.
func (a *Agent) composeLyrics(ctx context.Context, sess *state.Session) (string, error) {
	id := sess.ID()
	if err := a.advance(sess, types.StageGeneratingLyrics, "正在生成歌词..."); err != nil {
		return "", err
	}
	req := sess.Requirement()
	if req == nil {
		return "", &types.StateError{Stage: sess.Stage(), Reason: "用户需求未收集"}
	}

	guidance := ""
	if preset, err := a.presets.Style(req.Style); err == nil {
		guidance = preset.Guidance
	}
	messages := a.prompts.Lyrics(req, guidance, sess.Conversation())

	var content string
	attempt := 0
	sawContentErr := false
	err := a.lyricsRetry.Execute(ctx, func() error {
		attempt++
		resp, err := a.provider.Complete(ctx, messages,
			llm.CompletionParams{Temperature: 0.8, MaxTokens: 1500})
		if err != nil {
			a.tracker.AddDebugLog(id, fmt.Sprintf("歌词生成失败 (尝试 %d): %s", attempt, err))
			return &types.ExternalServiceError{Service: "llm", Transport: true, Err: err}
		}
		content = prompt.CleanLyrics(resp.Content)
		if !longEnough(content) {
			sawContentErr = true
			a.tracker.AddDebugLog(id, fmt.Sprintf("歌词生成失败 (尝试 %d): 生成的歌词过短", attempt))
			return &types.ContentError{Reason: "生成的歌词过短"}
		}
		return nil
	})
	if err != nil {
		if sawContentErr {
			a.tracker.AddDebugLog(id, "歌词生成错误: "+err.Error())
			return "歌词生成失败: " + err.Error(), err
		}
		a.tracker.AddDebugLog(id, "LLM连续失败，使用备用歌词模板")
		content = prompt.FallbackLyrics(req.Theme)
	}

	v := sess.AddLyricsVersion(content, "")
	a.tracker.AddDebugLog(id, fmt.Sprintf("成功生成歌词版本 %d", v.Version))
	a.emitter.EmitLyricsGenerated(id, v.Version)
	if err := a.advance(sess, types.StageReviewingLyrics, "等待用户审核歌词"); err != nil {
		return "", err
	}
	a.reply(id, fmt.Sprintf("🎵 我为您创作了以下歌词：\n\n%s\n\n请问您对这首歌词满意吗？如果满意请回复'满意'或'生成音乐'，如需修改请告诉我您的建议。", content))
	return "歌词生成完成", nil
}

func longEnough(content string) bool {
	return utf8.RuneCountInString(content) >= minLyricsRunes
}
