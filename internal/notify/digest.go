package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/fukushu/internal/model"
)

// Digest はカテゴリごとにまとめた期限到来項目のテキストサマリーを生成する。
// 区分の順序はgroupsの順序（カテゴリ名昇順）をそのまま使う。
func Digest(groups []model.CategoryGroup, asOf time.Time) string {
	total := 0
	for _, g := range groups {
		total += len(g.Items)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s の復習: %d件\n", asOf.Format(model.DateLayout), total)

	for _, g := range groups {
		fmt.Fprintf(&b, "\n[%s]\n", g.Category)
		for _, item := range g.Items {
			fmt.Fprintf(&b, "- %s (%s)\n", item.Topic, item.NextReviewDate.Format(model.DateLayout))
		}
	}

	return b.String()
}
