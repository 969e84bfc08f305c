package agent

import (
	"fmt"

	"github.com/user/songforge/internal/types"
)

// thinkFor returns the reasoning note recorded before each action. Terminal
// stages produce nothing.
func thinkFor(stage types.Stage, context string) string {
	switch stage {
	case types.StageInit:
		return fmt.Sprintf("用户想要生成音乐：%s。我需要分析他们的需求，然后生成合适的歌词。", context)
	case types.StageCollectingRequirements:
		return "我需要进一步了解用户的具体需求，如音乐风格、情绪等。"
	case types.StageGeneratingLyrics:
		return "我正在基于用户需求生成歌词候选版本。"
	case types.StageReviewingLyrics:
		return "我需要展示歌词给用户审核，等待他们的反馈。"
	case types.StagePreparingGeneration:
		return "歌词已确认，我需要准备音乐生成参数。"
	case types.StageGeneratingMusic:
		return "正在调用生成服务生成音乐..."
	}
	return ""
}
