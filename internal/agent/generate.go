package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/songforge/internal/state"
	"github.com/user/songforge/internal/types"
)

// runGeneration drives the generation routine end to end: parameter build,
// backend calls with retries, asset recording, and the final stage flip.
// A returned error means the session has already been driven to failed.
func (a *Agent) runGeneration(ctx context.Context, sess *state.Session) error {
	id := sess.ID()

	selected, ok := sess.SelectedLyrics()
	if !ok || !sess.HasApprovedLyrics() {
		err := &types.StateError{Stage: sess.Stage(), Reason: "没有已批准的歌词版本"}
		a.failGeneration(id, err.Reason)
		return err
	}
	req := sess.Requirement()
	if req == nil {
		err := &types.StateError{Stage: sess.Stage(), Reason: "用户需求未收集"}
		a.failGeneration(id, err.Reason)
		return err
	}

	params := a.buildParams(req, selected.Content)
	sess.SetGenerationParams(params)
	a.tracker.AddDebugLog(id, fmt.Sprintf("构建生成参数: prompt='%.60s', duration=%g", params.Prompt, params.Duration))

	a.advance(sess, types.StagePreparingGeneration, "")
	if err := a.advance(sess, types.StageGeneratingMusic, "正在生成音乐..."); err != nil {
		a.failGeneration(id, err.Error())
		return err
	}
	a.tracker.AddDebugLog(id, "开始音乐生成")
	a.emitter.EmitGenerationStarted(id, params)

	var last *types.GenerationResult
	err := a.genRetry.Execute(ctx, func() error {
		res, err := a.generator.Generate(ctx, params)
		if err != nil {
			last = &types.GenerationResult{Success: false, Error: err.Error(), Transport: true}
			a.tracker.AddDebugLog(id, "音乐生成尝试失败: "+err.Error())
			return &types.ExternalServiceError{Service: "generation", Transport: true, Err: err}
		}
		last = res
		if !res.Success {
			a.tracker.AddDebugLog(id, "音乐生成尝试失败: "+res.Error)
			return &types.ExternalServiceError{Service: "generation", Transport: res.Transport, Err: errors.New(res.Error)}
		}
		return nil
	})
	if err != nil {
		msg := err.Error()
		if last != nil && last.Error != "" {
			msg = last.Error
		}
		sess.SetGenerationResult(last)
		a.emitter.EmitGenerationCompleted(id, last)
		a.failGeneration(id, msg)
		a.reply(id, "抱歉，音乐生成时遇到了问题: "+msg)
		return err
	}

	sess.SetGenerationResult(last)
	a.recordAssets(sess, selected, last)
	a.emitter.EmitGenerationCompleted(id, last)
	if err := a.advance(sess, types.StageCompleted, "音乐生成完成！"); err != nil {
		return err
	}
	a.reply(id, "🎉 音乐生成完成！您可以在右侧播放器中试听和下载。")
	a.tracker.Push(id, types.PushComplete, map[string]any{
		"session_id": string(id),
		"result":     "音乐生成完成",
	})
	return nil
}

// failGeneration records the failure and flips the session to failed.
func (a *Agent) failGeneration(id types.SessionID, msg string) {
	a.tracker.AddDebugLog(id, "音乐生成失败: "+msg)
	a.tracker.SetError(id, "音乐生成失败: "+msg)
}

// recordAssets imports the generated audio into the media store and writes
// the final lyrics beside it. Import failures degrade to the backend's own
// path so the result stays usable.
func (a *Agent) recordAssets(sess *state.Session, selected types.LyricsVersion, res *types.GenerationResult) {
	id := sess.ID()
	for _, src := range res.AudioPaths {
		if src == "" {
			continue
		}
		local, err := a.media.ImportAudio(id, src)
		if err != nil {
			a.tracker.AddDebugLog(id, "音频导入失败: "+err.Error())
			local = src
		}
		asset := sess.AddAsset(types.Asset{
			Type:     types.AssetTypeAudio,
			Path:     local,
			Metadata: res.Metadata,
			Final:    true,
		})
		a.emitter.EmitAsset(id, types.AssetTypeAudio, asset.ID, local, true)
	}

	path, err := a.media.SaveLyrics(id, selected.Version, selected.Content)
	if err != nil {
		a.tracker.AddDebugLog(id, "歌词文件写入失败: "+err.Error())
	}
	asset := sess.AddAsset(types.Asset{
		Type:     types.AssetTypeLyrics,
		Path:     path,
		Content:  selected.Content,
		Metadata: map[string]any{"version": selected.Version},
		Final:    true,
	})
	a.emitter.EmitAsset(id, types.AssetTypeLyrics, asset.ID, selected.Content, true)
}
