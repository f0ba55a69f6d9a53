// CLAUDE:SUMMARY Pure label-anchored parser turning raw panel markup into a FieldMap — title attributes preferred, numeric normalization, derived per-period averages.
package inspect

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind selects how a matched value is interpreted.
type Kind int

const (
	// KindText keeps the raw value as-is.
	KindText Kind = iota
	// KindNumber normalizes and parses the value as a number.
	KindNumber
	// KindRating splits "4.8 / 1,234" into a rating and a count.
	KindRating
)

// LabelRule maps one label text appearing in the panel markup to a
// canonical field. The label→field table is data, not code: it is passed
// into Parse so localization changes and tests need no code edits.
type LabelRule struct {
	Label string
	Field string
	Kind  Kind
	// CountField receives the value after "/" for KindRating rules.
	CountField string
}

// Value is one parsed panel field. Numeric fields carry Num with IsNum
// set; text fields carry Raw only.
type Value struct {
	Raw   string
	Num   float64
	IsNum bool
}

// FieldMap maps canonical field names to parsed values. A label missing
// from the markup has no entry; absence means "unknown", never zero.
type FieldMap map[string]Value

// Text returns the raw value of a field, or "" when absent.
func (m FieldMap) Text(name string) string { return m[name].Raw }

// Number returns the numeric value of a field and whether it is present
// and numeric.
func (m FieldMap) Number(name string) (float64, bool) {
	v, ok := m[name]
	return v.Num, ok && v.IsNum
}

// DefaultLabelTable is the label table for the seller-analytics panel as
// rendered on product pages. Labels are the exact anchor texts; fields are
// the canonical record names.
func DefaultLabelTable() []LabelRule {
	return []LabelRule{
		{Label: "品类", Field: "category", Kind: KindText},
		{Label: "昨日销量", Field: "sales_daily", Kind: KindNumber},
		{Label: "昨日销售额", Field: "revenue_daily", Kind: KindNumber},
		{Label: "近7天销量", Field: "sales_7d", Kind: KindNumber},
		{Label: "近7天销售额", Field: "revenue_7d", Kind: KindNumber},
		{Label: "近30天销量", Field: "sales_30d", Kind: KindNumber},
		{Label: "近30天销售额", Field: "revenue_30d", Kind: KindNumber},
		{Label: "评分", Field: "rating", Kind: KindRating, CountField: "review_count"},
		{Label: "库存", Field: "stock", Kind: KindNumber},
		{Label: "成本范围", Field: "cost_range", Kind: KindText},
		{Label: "上架时间", Field: "listed_at", Kind: KindText},
		{Label: "店铺名称", Field: "shop_name", Kind: KindText},
		{Label: "店铺类型", Field: "shop_type", Kind: KindText},
		{Label: "店铺销量", Field: "shop_sales", Kind: KindNumber},
		{Label: "商品数量", Field: "shop_products", Kind: KindNumber},
		{Label: "店铺评分", Field: "shop_rating", Kind: KindRating, CountField: "shop_review_count"},
		{Label: "店铺评价", Field: "shop_reviews", Kind: KindNumber},
		{Label: "粉丝数", Field: "shop_fans", Kind: KindNumber},
		{Label: "店龄", Field: "shop_age", Kind: KindText},
	}
}

var (
	titleAttrRe = regexp.MustCompile(`title="([^"]*)"`)
	textSegRe   = regexp.MustCompile(`>([^<>]+)<`)
	numTokenRe  = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
)

// valueWindow bounds how far past a label anchor the value markup may sit.
const valueWindow = 400

// Parse extracts labeled fields from the serialized panel markup. Pure and
// deterministic: it operates on the markup string alone, so it can run
// after the session that produced the markup is gone.
//
// For each rule the value is resolved in order of preference:
//  1. a title attribute of the form "label: value" anywhere in the markup
//     (titles hold the unabbreviated data);
//  2. a title attribute within the window following the label anchor;
//  3. the first visible text segment within that window.
func Parse(markup string, table []LabelRule) FieldMap {
	m := FieldMap{}
	titles := titleAttrRe.FindAllStringSubmatch(markup, -1)

	for _, rule := range table {
		raw, ok := findValue(markup, titles, rule.Label)
		if !ok {
			continue
		}
		assign(m, rule, raw)
	}

	deriveAverages(m)
	return m
}

func findValue(markup string, titles [][]string, label string) (string, bool) {
	// Labeled title attributes first: title="昨日销量: 120".
	for _, t := range titles {
		if v, ok := splitLabeled(t[1], label); ok {
			return v, true
		}
	}

	idx := strings.Index(markup, label)
	if idx < 0 {
		return "", false
	}
	win := markup[idx+len(label):]
	if len(win) > valueWindow {
		win = win[:valueWindow]
	}

	if t := titleAttrRe.FindStringSubmatch(win); t != nil && strings.TrimSpace(t[1]) != "" {
		return strings.TrimSpace(stripSeparators(t[1])), true
	}
	for _, seg := range textSegRe.FindAllStringSubmatch(win, -1) {
		v := strings.TrimSpace(stripSeparators(seg[1]))
		if v != "" {
			return v, true
		}
	}
	return "", false
}

// splitLabeled matches "label: value" with an ASCII or full-width colon.
func splitLabeled(s, label string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, label) {
		return "", false
	}
	rest := stripSeparators(s[len(label):])
	if rest == "" {
		return "", false
	}
	return rest, true
}

func stripSeparators(s string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), ":： "))
}

func assign(m FieldMap, rule LabelRule, raw string) {
	switch rule.Kind {
	case KindText:
		m[rule.Field] = Value{Raw: raw}

	case KindNumber:
		if n, ok := parseNumber(raw); ok {
			m[rule.Field] = Value{Raw: raw, Num: n, IsNum: true}
		} else {
			m[rule.Field] = Value{Raw: raw}
		}

	case KindRating:
		left, right, split := strings.Cut(raw, "/")
		if split {
			if n, ok := parseNumber(left); ok {
				m[rule.Field] = Value{Raw: strings.TrimSpace(left), Num: n, IsNum: true}
			}
			if rule.CountField != "" {
				if n, ok := parseNumber(right); ok {
					m[rule.CountField] = Value{Raw: strings.TrimSpace(right), Num: n, IsNum: true}
				}
			}
			return
		}
		if n, ok := parseNumber(raw); ok {
			m[rule.Field] = Value{Raw: raw, Num: n, IsNum: true}
		} else {
			m[rule.Field] = Value{Raw: raw}
		}
	}
}

// parseNumber normalizes a panel value (currency symbols, thousands
// separators, unit suffixes) and parses it. Falls back to the first
// numeric token when the whole string does not parse.
func parseNumber(s string) (float64, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '¥', '￥', '$', '€', '£', ',', '，', ' ', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	if tok := numTokenRe.FindString(s); tok != "" {
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// deriveAverages computes per-period average prices (revenue/sales,
// rounded to 2 decimals). An average is present iff both inputs are
// present; missing inputs skip the period silently.
func deriveAverages(m FieldMap) {
	periods := []struct{ sales, revenue, avg string }{
		{"sales_daily", "revenue_daily", "avg_price_daily"},
		{"sales_7d", "revenue_7d", "avg_price_7d"},
		{"sales_30d", "revenue_30d", "avg_price_30d"},
	}
	for _, p := range periods {
		sales, ok1 := m.Number(p.sales)
		revenue, ok2 := m.Number(p.revenue)
		if !ok1 || !ok2 || sales == 0 {
			continue
		}
		avg := math.Round(revenue/sales*100) / 100
		m[p.avg] = Value{
			Raw:   strconv.FormatFloat(avg, 'f', 2, 64),
			Num:   avg,
			IsNum: true,
		}
	}
}
