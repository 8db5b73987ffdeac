package models

// Categories are the fixed learning categories a finalized entry is filed under.
var Categories = []string{
	"技術・スキル",
	"人間関係",
	"目標・計画",
	"失敗・挫折",
	"成功・達成",
	"健康・メンタル",
	"仕事・キャリア",
	"学習・成長",
	"創造・アイデア",
	CategoryOther,
}

// CategoryOther is used when nothing more specific fits.
const CategoryOther = "その他"

// IsCategory reports whether c is one of Categories.
func IsCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

// Analytics summarises an owner's completed entries.
type Analytics struct {
	Total        int
	Completed    int
	ByCategory   map[string]int
	ByHintStatus map[HintStatus]int
	AverageTurns float64
}
