package llm

import (
	"strings"

	"github.com/dmitrijs2005/failseed/internal/server/models"
)

// categoryKeywords is consulted in models.Categories order when the model
// does not return a known category.
var categoryKeywords = map[string][]string{
	"技術・スキル":  {"技術", "プログラミング", "コード", "開発", "システム", "ツール", "スキル"},
	"人間関係":    {"人間関係", "コミュニケーション", "チーム", "上司", "同僚", "友人", "家族"},
	"目標・計画":   {"目標", "計画", "予定", "スケジュール", "戦略", "方針"},
	"失敗・挫折":   {"失敗", "挫折", "ミス", "エラー", "間違い", "困難", "問題"},
	"成功・達成":   {"成功", "達成", "完成", "勝利", "成果", "結果"},
	"健康・メンタル": {"健康", "メンタル", "心", "体", "運動", "食事", "睡眠"},
	"仕事・キャリア": {"仕事", "キャリア", "職場", "転職", "昇進", "業務"},
	"学習・成長":   {"学習", "成長", "勉強", "研修", "セミナー", "読書"},
	"創造・アイデア": {"創造", "アイデア", "発明", "デザイン", "芸術", "作品"},
}

// Categorize returns the first category whose keywords occur in text,
// or models.CategoryOther.
func Categorize(text string) string {
	text = strings.ToLower(text)
	for _, c := range models.Categories {
		for _, k := range categoryKeywords[c] {
			if strings.Contains(text, k) {
				return c
			}
		}
	}
	return models.CategoryOther
}
