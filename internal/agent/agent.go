// Package agent implements the conversational orchestrator: a bounded
// think-decide-act loop that walks each session through requirement
// analysis, lyric drafting, review, and music generation.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/songforge/internal/gateway"
	"github.com/user/songforge/internal/hooks"
	"github.com/user/songforge/internal/prompt"
	"github.com/user/songforge/internal/state"
	"github.com/user/songforge/internal/types"
	"github.com/user/songforge/pkg/llm"
)

// Config tunes the orchestrator loop and its retry budgets.
type Config struct {
	MaxIterations     int
	IterationDelay    time.Duration
	MaxLyricsRetries  int
	GenerationRetries int
	FailureDelay      time.Duration
	ExceptionDelay    time.Duration
	CandidateCount    int
	DefaultDuration   float64
}

// DefaultConfig mirrors the shipped configuration defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:     10,
		IterationDelay:    500 * time.Millisecond,
		MaxLyricsRetries:  3,
		GenerationRetries: 2,
		FailureDelay:      3 * time.Second,
		ExceptionDelay:    5 * time.Second,
		CandidateCount:    3,
		DefaultDuration:   30,
	}
}

// Agent orchestrates sessions against the language-model and generation
// collaborators. One Agent serves every session; per-session serialization
// is the gateway queue's job.
type Agent struct {
	tracker   *state.Tracker
	provider  llm.Provider
	generator types.GenerationClient
	emitter   *hooks.Emitter
	prompts   *prompt.Engine
	presets   *state.PresetStore
	media     *state.MediaStore
	cfg       Config

	lyricsRetry *gateway.RetryPolicy
	genRetry    *gateway.RetryPolicy
}

// New creates an Agent with the given dependencies.
func New(
	tracker *state.Tracker,
	provider llm.Provider,
	generator types.GenerationClient,
	emitter *hooks.Emitter,
	prompts *prompt.Engine,
	presets *state.PresetStore,
	media *state.MediaStore,
	cfg Config,
) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.MaxLyricsRetries <= 0 {
		cfg.MaxLyricsRetries = 3
	}
	if cfg.CandidateCount <= 0 {
		cfg.CandidateCount = 3
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 30
	}
	return &Agent{
		tracker:   tracker,
		provider:  provider,
		generator: generator,
		emitter:   emitter,
		prompts:   prompts,
		presets:   presets,
		media:     media,
		cfg:       cfg,
		// Lyric attempts run back to back; content rejections and LLM
		// failures both count against the same budget.
		lyricsRetry: &gateway.RetryPolicy{MaxAttempts: cfg.MaxLyricsRetries},
		genRetry: &gateway.RetryPolicy{
			MaxAttempts: cfg.GenerationRetries + 1,
			DelayFunc: func(err error, attempt int) time.Duration {
				var ese *types.ExternalServiceError
				if errors.As(err, &ese) && ese.Transport {
					return cfg.ExceptionDelay
				}
				return cfg.FailureDelay
			},
		},
	}
}

// ProcessRun executes one inbound event against its session.
// This is the function passed to Queue.SetProcessor.
func (a *Agent) ProcessRun(run *gateway.Run) error {
	ctx := run.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	run.Status = gateway.RunStatusRunning
	run.StartedAt = &start
	run.Attempts++

	reply, err := a.process(ctx, run.Event)

	end := time.Now()
	run.EndedAt = &end
	if err != nil {
		run.Status = gateway.RunStatusFailed
		run.Error = err
		return err
	}
	run.Status = gateway.RunStatusComplete
	if reply != "" && run.OnComplete != nil {
		run.OnComplete(reply)
	}
	return nil
}

func (a *Agent) process(ctx context.Context, event *types.InboundEvent) (string, error) {
	sess, err := a.tracker.Get(event.SessionID)
	if err != nil {
		return "", err
	}
	if event.Review != nil {
		return a.handleReview(ctx, sess, event.Review)
	}
	return a.handleMessage(ctx, sess, event.Text)
}

// handleMessage runs one user chat turn. Review-stage text is interpreted as
// an approval or revision request before the loop; sessions busy generating
// or already terminal get a status reply instead of a loop run.
func (a *Agent) handleMessage(ctx context.Context, sess *state.Session, text string) (string, error) {
	id := sess.ID()
	a.tracker.AddConversationTurn(id, "user", text)
	a.tracker.AddDebugLog(id, "开始处理用户输入: "+text)

	switch sess.Stage() {
	case types.StageGeneratingMusic:
		return a.reply(id, "音乐正在生成中，请稍候...")
	case types.StageCompleted:
		return a.reply(id, "音乐生成已完成！您可以查看和下载生成的音乐。")
	case types.StageFailed:
		return a.reply(id, "抱歉，我不确定当前的状态。请描述您想要的音乐类型。")
	case types.StageReviewingLyrics:
		if isApproval(text) {
			return a.approveAndGenerate(ctx, sess, 0)
		}
		return a.reviseLyrics(ctx, sess, text)
	}
	return "", a.loop(ctx, sess, text)
}

// handleReview applies a review decision submitted through the transport.
func (a *Agent) handleReview(ctx context.Context, sess *state.Session, review *types.LyricsReview) (string, error) {
	id := sess.ID()
	if sess.Stage() != types.StageReviewingLyrics {
		return "", &types.StateError{Stage: sess.Stage(), Reason: "没有待审核的歌词"}
	}
	if review.Feedback != "" {
		a.tracker.AddDebugLog(id, "用户反馈: "+review.Feedback)
	}

	version := review.Version
	if version == 0 {
		if latest, ok := sess.LatestLyrics(); ok {
			version = latest.Version
		}
	}
	if review.Approved {
		return a.approveAndGenerate(ctx, sess, version)
	}

	a.advance(sess, types.StageReviewingLyrics, fmt.Sprintf("歌词版本 %d 需要修改", version))
	if review.Feedback == "" {
		return "", nil
	}
	return a.reviseLyrics(ctx, sess, review.Feedback)
}

// approveAndGenerate flags the version as final and hands the session to the
// loop, which will decide generate_music from preparing_generation. Version 0
// means the latest draft.
func (a *Agent) approveAndGenerate(ctx context.Context, sess *state.Session, version int) (string, error) {
	id := sess.ID()
	if version == 0 {
		latest, ok := sess.LatestLyrics()
		if !ok {
			return a.reply(id, "没有找到歌词，请重新开始。")
		}
		version = latest.Version
	}
	if !sess.ApproveLyrics(version) {
		return "", &types.ValidationError{Field: "version", Reason: fmt.Sprintf("歌词版本 %d 不存在", version)}
	}
	a.emitter.EmitLyricsApproved(id, version)
	if err := a.advance(sess, types.StagePreparingGeneration, fmt.Sprintf("歌词版本 %d 已批准", version)); err != nil {
		return "", err
	}
	return "", a.loop(ctx, sess, "")
}

// reviseLyrics produces a new version from user feedback. The current draft
// stays untouched; failures restore the review stage and surface the error.
func (a *Agent) reviseLyrics(ctx context.Context, sess *state.Session, feedback string) (string, error) {
	id := sess.ID()
	latest, ok := sess.LatestLyrics()
	if !ok {
		return a.reply(id, "没有找到原始歌词，请重新开始。")
	}
	if err := a.advance(sess, types.StageGeneratingLyrics, "正在根据反馈修改歌词"); err != nil {
		return "", err
	}

	content, err := a.composeRevision(ctx, latest.Content, feedback)
	if err != nil {
		a.tracker.AddDebugLog(id, "歌词修改失败: "+err.Error())
		a.advance(sess, types.StageReviewingLyrics, "等待用户审核歌词")
		return "", fmt.Errorf("歌词修改失败: %w", err)
	}

	v := sess.AddLyricsVersion(content, feedback)
	a.tracker.AddDebugLog(id, fmt.Sprintf("成功生成歌词版本 %d", v.Version))
	a.emitter.EmitLyricsGenerated(id, v.Version)
	a.advance(sess, types.StageReviewingLyrics, "等待用户审核歌词")
	return a.reply(id, fmt.Sprintf("根据您的反馈，我重新创作了歌词：\n\n%s\n\n这个版本怎么样？", content))
}

func (a *Agent) composeRevision(ctx context.Context, current, feedback string) (string, error) {
	resp, err := a.provider.Complete(ctx, a.prompts.Revision(current, feedback),
		llm.CompletionParams{Temperature: 0.8, MaxTokens: 1500})
	if err != nil {
		return "", &types.ExternalServiceError{Service: "llm", Transport: true, Err: err}
	}
	content := prompt.CleanLyrics(resp.Content)
	if !longEnough(content) {
		return "", &types.ContentError{Reason: "修改后的歌词过短"}
	}
	return content, nil
}

// loop runs the bounded think-decide-act cycle for one turn. Action failures
// never escape; the loop presses on until an action completes the turn or
// the iteration cap is hit.
func (a *Agent) loop(ctx context.Context, sess *state.Session, userInput string) error {
	id := sess.ID()
	for i := 1; i <= a.cfg.MaxIterations; i++ {
		a.tracker.AddDebugLog(id, fmt.Sprintf("ReAct循环第%d轮", i))

		stage := sess.Stage()
		if thought := thinkFor(stage, userInput); thought != "" {
			sess.AddThought(stage, thought)
			a.emitter.EmitThought(id, thought, stage)
		}

		action := decide(stage, sess.HasApprovedLyrics())
		a.tracker.AddDebugLog(id, "决定执行行动: "+action)
		a.perform(ctx, sess, action)

		if action == actionComplete || action == actionGenerateMusic {
			break
		}
		if a.cfg.IterationDelay > 0 {
			select {
			case <-time.After(a.cfg.IterationDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// reply posts an assistant turn and hands the text back for OnComplete.
func (a *Agent) reply(id types.SessionID, text string) (string, error) {
	a.tracker.AddConversationTurn(id, "assistant", text)
	return text, nil
}

// advance moves the session's stage and publishes the transition on the bus.
// Same-stage refreshes are applied but not published.
func (a *Agent) advance(sess *state.Session, to types.Stage, desc string) error {
	from := sess.Stage()
	if err := a.tracker.UpdateStage(sess.ID(), to, desc); err != nil {
		return err
	}
	if from != to {
		a.emitter.EmitStageChange(sess.ID(), from, to)
	}
	return nil
}

var approvalKeywords = []string{"满意", "可以", "好的", "开始生成", "生成音乐", "确认"}

// isApproval reports whether a review-stage message accepts the draft.
func isApproval(text string) bool {
	for _, kw := range approvalKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
