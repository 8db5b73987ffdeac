// Package safety screens user messages for self-harm language before any
// model call is made.
package safety

import "strings"

// Message is shown to the user when a message is withheld.
const Message = "心配な内容が含まれています。専門の相談窓口にご相談ください。"

var keywords = []string{
	"自殺", "死にたい", "消えたい", "生きていたくない",
	"自傷", "リストカット", "薬を飲む", "飛び降り",
}

// englishKeywords are matched against the lower-cased text.
var englishKeywords = []string{
	"suicide", "kill myself", "want to die", "end my life",
	"self-harm", "self harm", "cut myself", "overdose",
}

var resources = []string{
	"いのちの電話: 0570-783-556",
	"こころの健康相談統一ダイヤル: 0570-064-556",
}

// IsDangerous reports whether text contains any denylisted phrase.
// It is a plain substring match with no state.
func IsDangerous(text string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	lower := strings.ToLower(text)
	for _, k := range englishKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Resources returns the hotline contacts attached to a safety response.
func Resources() []string {
	out := make([]string, len(resources))
	copy(out, resources)
	return out
}
