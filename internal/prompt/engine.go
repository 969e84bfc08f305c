package prompt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/songforge/internal/types"
	"github.com/user/songforge/pkg/llm"
)

// Engine assembles token-budgeted prompts for the lyric composer.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// New creates a prompt engine with the specified token budget.
// model is used to select the appropriate tokenizer (e.g. "qwen-turbo-latest").
// maxTokens is the model's context window size.
// reserve is the number of tokens to reserve for the model's response.
func New(model string, maxTokens, reserve int) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Engine{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

// countTokens returns the token count for a string.
func (e *Engine) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

// Lyrics builds the composition request: recent conversation turns for
// context, then the instruction carrying the requirement and style guidance.
// Context is budgeted at 70% of what remains after the instruction; the
// newest turns survive trimming.
func (e *Engine) Lyrics(req *types.Requirement, guidance string, turns []types.ConversationTurn) []llm.Message {
	instruction := lyricsInstruction(req, guidance)

	inputBudget := e.maxTokens - e.reserve
	remaining := inputBudget - e.countTokens(instruction)
	contextBudget := int(float64(remaining) * 0.7)

	var kept []llm.Message
	usedTokens := 0
	for i := len(turns) - 1; i >= 0; i-- {
		msg := llm.Message{Role: turns[i].Role, Content: turns[i].Content}
		msgTokens := e.countTokens(msg.Content)
		if usedTokens+msgTokens > contextBudget {
			break
		}
		kept = append(kept, msg)
		usedTokens += msgTokens
	}

	// kept is newest-first; emit in chronological order.
	messages := make([]llm.Message, 0, len(kept)+1)
	for i := len(kept) - 1; i >= 0; i-- {
		messages = append(messages, kept[i])
	}
	messages = append(messages, llm.Message{Role: "user", Content: instruction})
	return messages
}

// Revision builds the request that rewrites lyrics per user feedback.
func (e *Engine) Revision(current, feedback string) []llm.Message {
	return []llm.Message{
		{Role: "user", Content: fmt.Sprintf(revisionTemplate, current, feedback)},
	}
}

// Mood builds the mood classification request for free-form theme text.
func (e *Engine) Mood(theme string) []llm.Message {
	return []llm.Message{
		{Role: "user", Content: fmt.Sprintf(moodTemplate, theme)},
	}
}

func lyricsInstruction(req *types.Requirement, guidance string) string {
	requests := "无"
	if len(req.SpecificRequests) > 0 {
		requests = strings.Join(req.SpecificRequests, ", ")
	}
	duration := strconv.FormatFloat(req.Duration, 'f', -1, 64)
	return fmt.Sprintf(lyricsTemplate,
		req.Theme, req.Style, req.Mood, duration, requests,
		guidance, req.Style, duration)
}

var (
	lyricsLabelRE  = regexp.MustCompile(`^歌词[:：]?\s*`)
	lyricsMarkerRE = regexp.MustCompile(`^[【\[].*?[】\]]\s*`)
	codeFenceRE    = regexp.MustCompile("(?s)```.*?```")
)

// CleanLyrics strips the labels, bracket markers and code fences the model
// sometimes wraps around the lyric body.
func CleanLyrics(response string) string {
	s := strings.TrimSpace(response)
	s = lyricsLabelRE.ReplaceAllString(s, "")
	s = lyricsMarkerRE.ReplaceAllString(s, "")
	s = codeFenceRE.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// FallbackLyrics returns a canned lyric body keyed off the theme, used when
// the language model is unreachable.
func FallbackLyrics(theme string) string {
	switch {
	case containsAny(theme, "伤感", "悲伤", "难过", "失落"):
		return fallbackMelancholic
	case containsAny(theme, "激昂", "热血", "激情", "燃"):
		return fallbackEnergetic
	default:
		return fallbackDefault
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
