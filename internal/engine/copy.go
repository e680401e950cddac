package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jwebster45206/hunt-engine/pkg/answer"
)

// Copy is the player-facing text of the game and the command tokens the
// engine recognizes. Defaults come from DefaultCopy; a levels file can
// override any of them.
type Copy struct {
	Welcome         string
	StartBanner     string
	StartPrompt     string
	ResetConfirm    string
	CompletedNotice string
	WrongAnswer     string
	TravelPrompt    string
	ArrivalAck      string
	ArrivalReminder string
	SystemError     string
	TransientError  string
	CorruptState    string
	// QuestionHeader is placed on the line above each question. "{level}"
	// is replaced with the level id.
	QuestionHeader string

	StartTokens   []string
	ResetTokens   []string
	ArrivalTokens []string
}

// DefaultCopy returns the stock Traditional Chinese copy.
func DefaultCopy() *Copy {
	return &Copy{
		Welcome: "🌿 歡迎來到《圓山探險隊》。\n" +
			"這是一場用「腳」閱讀的旅程，\n" +
			"也是一場用「心」傾聽的課程。\n\n" +
			"當你準備好，\n" +
			"請輸入「START」或「開始」展開旅程，\n" +
			"讓故事，從圓山的風裡開始說起。",
		StartBanner:     "🚀 旅程開始！祝您探險愉快。",
		StartPrompt:     "請輸入「START」或「開始」以展開您的圓山探險旅程。",
		ResetConfirm:    "🕵️‍♂️ 進度已重設！您已回到起點。",
		CompletedNotice: "🎉 恭喜您已完成所有挑戰！如果您想重新開始，請輸入「RESET」或「重置」。",
		WrongAnswer:     "❌ 答案不正確，請再仔細觀察現場。",
		TravelPrompt:    "📍 抵達下一個地點後，請輸入「到」或「ARRIVED」領取下一道謎題。",
		ArrivalAck:      "👣 確認抵達！下一道謎題來了。",
		ArrivalReminder: "請先前往下一個地點，抵達後輸入「到」或「ARRIVED」。",
		SystemError:     "🚨 遊戲系統錯誤：找不到關卡數據。請聯繫管理員檢查資料庫初始化。",
		TransientError:  "❌ 系統暫時無法處理您的訊息，請稍後再試。",
		CorruptState:    "⚠️ 您的遊戲進度資料異常，請輸入「RESET」或「重置」重新開始。",
		QuestionHeader:  "【{level} 挑戰】",

		StartTokens:   []string{"START", "開始"},
		ResetTokens:   []string{"RESET", "重置"},
		ArrivalTokens: []string{"到", "到了", "抵達", "ARRIVED", "THERE"},
	}
}

// WithOverrides returns a copy of c with the given message and command
// overrides applied. Keys match the levels file: messages use snake_case
// field names (welcome, wrong_answer, question_header, ...), commands use
// start, reset and arrival. Unknown keys are an error.
func (c *Copy) WithOverrides(messages map[string]string, commands map[string][]string) (*Copy, error) {
	out := *c
	out.StartTokens = append([]string(nil), c.StartTokens...)
	out.ResetTokens = append([]string(nil), c.ResetTokens...)
	out.ArrivalTokens = append([]string(nil), c.ArrivalTokens...)

	fields := map[string]*string{
		"welcome":          &out.Welcome,
		"start_banner":     &out.StartBanner,
		"start_prompt":     &out.StartPrompt,
		"reset_confirm":    &out.ResetConfirm,
		"completed_notice": &out.CompletedNotice,
		"wrong_answer":     &out.WrongAnswer,
		"travel_prompt":    &out.TravelPrompt,
		"arrival_ack":      &out.ArrivalAck,
		"arrival_reminder": &out.ArrivalReminder,
		"system_error":     &out.SystemError,
		"transient_error":  &out.TransientError,
		"corrupt_state":    &out.CorruptState,
		"question_header":  &out.QuestionHeader,
	}
	for key, value := range messages {
		field, ok := fields[key]
		if !ok {
			return nil, fmt.Errorf("unknown message key %q (known: %s)", key, strings.Join(sortedKeys(fields), ", "))
		}
		*field = value
	}

	tokens := map[string]*[]string{
		"start":   &out.StartTokens,
		"reset":   &out.ResetTokens,
		"arrival": &out.ArrivalTokens,
	}
	for key, values := range commands {
		field, ok := tokens[key]
		if !ok {
			return nil, fmt.Errorf("unknown command key %q (known: %s)", key, strings.Join(sortedKeys(tokens), ", "))
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("command %q needs at least one token", key)
		}
		for _, v := range values {
			if answer.Normalize(v) == "" {
				return nil, fmt.Errorf("command %q has a token that normalizes to nothing: %q", key, v)
			}
		}
		*field = append([]string(nil), values...)
	}

	return &out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Copy) questionHeader(levelID string) string {
	return strings.ReplaceAll(c.QuestionHeader, "{level}", levelID)
}

func (c *Copy) isReset(input string) bool   { return answer.MatchAny(input, c.ResetTokens) }
func (c *Copy) isStart(input string) bool   { return answer.MatchAny(input, c.StartTokens) }
func (c *Copy) isArrival(input string) bool { return answer.MatchAny(input, c.ArrivalTokens) }
