// Package category maps free-text section names to a fixed set of category
// labels by keyword matching.
package category

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is a display bucket for a section.
type Category struct {
	Label string
	Color string
}

// Default is returned when no rule matches.
var Default = Category{Label: "ETC", Color: "#94a3b8"}

type rule struct {
	keywords []string
	category Category
}

// Order is significant: the first rule with a matching keyword wins.
var rules = []rule{
	{
		keywords: []string{"프론트엔드", "UI", "UX", "랜딩", "frontend", "Redesign", "화면", "컴포넌트"},
		category: Category{Label: "FE", Color: "#60a5fa"},
	},
	{
		keywords: []string{"백엔드", "API", "backend", "서버", "인증"},
		category: Category{Label: "BE", Color: "#4ade80"},
	},
	{
		keywords: []string{"데이터", "DB", "ORM", "파이프라인", "Data", "모델", "스키마"},
		category: Category{Label: "DATA", Color: "#c084fc"},
	},
	{
		keywords: []string{"인프라", "클라우드", "배포", "CI", "CD", "Docker", "DevOps"},
		category: Category{Label: "INFRA", Color: "#22d3ee"},
	},
	{
		keywords: []string{"QA", "버그", "테스트", "bug", "픽스", "fix"},
		category: Category{Label: "QA", Color: "#fb923c"},
	},
	{
		keywords: []string{"기획", "설계", "요구사항", "plan", "디자인", "design", "폴리싱", "마무리"},
		category: Category{Label: "PLAN", Color: "#f472b6"},
	},
	{
		keywords: []string{"domain", "도메인", "entity", "VO"},
		category: Category{Label: "DOMAIN", Color: "#a78bfa"},
	},
}

func init() {
	lower := cases.Lower(language.Und)
	for i := range rules {
		for j, kw := range rules[i].keywords {
			rules[i].keywords[j] = lower.String(kw)
		}
	}
}

// Lower returns the lower-cased form of s used for all keyword and search
// comparisons. Only case changes; "ß" stays "ß" and never matches "ss".
func Lower(s string) string {
	// Casers carry state and must not be shared between goroutines.
	return cases.Lower(language.Und).String(s)
}

// Classify returns the category of the first rule whose keyword occurs in
// sectionName, or Default.
func Classify(sectionName string) Category {
	name := Lower(sectionName)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(name, kw) {
				return r.category
			}
		}
	}
	return Default
}

// All returns every category a section can classify into, in rule order,
// followed by Default.
func All() []Category {
	all := make([]Category, 0, len(rules)+1)
	for _, r := range rules {
		all = append(all, r.category)
	}
	return append(all, Default)
}

// IsKnown reports whether label names one of the categories in All.
func IsKnown(label string) bool {
	for _, c := range All() {
		if c.Label == label {
			return true
		}
	}
	return false
}
