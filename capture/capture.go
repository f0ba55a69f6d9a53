// CLAUDE:SUMMARY Primary product extraction from raw page HTML: embedded SSR JSON first, goquery fallback, markdown description.
// Package capture extracts the primary product record from a rendered
// page's HTML.
//
// Product listings embed their data as server-side-rendered JSON in
// script tags; that is tried first. When no JSON blob is present (or it
// fails to parse) a goquery pass over the visible markup recovers the
// basics. The description block is sanitised and converted to markdown
// for storage.
package capture

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Image is one product image. LocalPath is set once the image has been
// downloaded to disk.
type Image struct {
	URL       string `json:"url"`
	Primary   bool   `json:"primary"`
	LocalPath string `json:"local_path,omitempty"`
}

// Product is the primary record extracted from page HTML, before the
// instrumented analytics extraction runs.
type Product struct {
	GoodsID     string   `json:"goods_id"`
	PageURL     string   `json:"page_url"`
	Title       string   `json:"title,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Currency    string   `json:"currency,omitempty"`
	Images      []Image  `json:"images,omitempty"`
	Description string   `json:"description,omitempty"` // markdown
}

// PageType classifies a URL before collection.
type PageType string

const (
	PageProduct PageType = "product"
	PageSearch  PageType = "search"
	PageOther   PageType = "other"
)

// DetectPageType classifies a page URL by shape. Product pages carry a
// numeric goods ID before .html; search results use search_result.html
// with a search_key parameter.
func DetectPageType(pageURL string) PageType {
	if strings.Contains(pageURL, "search_result.html") || strings.Contains(pageURL, "search_key=") {
		return PageSearch
	}
	if goodsIDRe.MatchString(pageURL) {
		return PageProduct
	}
	return PageOther
}

var (
	goodsIDRe  = regexp.MustCompile(`/(\d+)\.html`)
	priceArgRe = regexp.MustCompile(`[¥￥$€£]\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)

	embeddedJSONRes = []*regexp.Regexp{
		regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\});`),
		regexp.MustCompile(`(?s)<script[^>]*id="__NEXT_DATA__"[^>]*>(\{.*?\})</script>`),
	}
)

// ParseProduct extracts a product record from page HTML. The goods ID
// comes from the URL; pages whose URL carries no numeric goods ID are
// rejected.
func ParseProduct(html, pageURL string) (*Product, error) {
	m := goodsIDRe.FindStringSubmatch(pageURL)
	if m == nil {
		return nil, fmt.Errorf("capture: no goods ID in URL %q", pageURL)
	}

	p := &Product{GoodsID: m[1], PageURL: pageURL}

	if data := extractEmbeddedJSON(html); data != nil {
		fillFromJSON(p, data)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("capture: parse HTML: %w", err)
	}
	fillFromDocument(p, doc)

	return p, nil
}

// extractEmbeddedJSON pulls the SSR data blob out of a script tag.
// Returns nil when no blob parses.
func extractEmbeddedJSON(html string) map[string]any {
	for _, re := range embeddedJSONRes {
		m := re.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(m[1]), &data); err != nil {
			continue
		}
		return data
	}
	return nil
}

// fillFromJSON populates the product from the SSR blob. The detail
// object lives at goodsDetail or pageProps.goodsDetail depending on the
// page build.
func fillFromJSON(p *Product, data map[string]any) {
	detail, ok := data["goodsDetail"].(map[string]any)
	if !ok {
		if props, ok2 := data["pageProps"].(map[string]any); ok2 {
			detail, _ = props["goodsDetail"].(map[string]any)
		}
	}
	if detail == nil {
		return
	}

	if t := strAny(detail, "goods_name", "goodsName"); t != "" {
		p.Title = t
	}
	if price, ok := priceAny(detail, "price", "salePrice"); ok {
		p.Price = &price
	}
	if cur := strAny(detail, "currency", "currencyCode"); cur != "" {
		p.Currency = cur
	}

	if thumb := strAny(detail, "thumb", "image", "goods_thumb"); thumb != "" {
		p.Images = append(p.Images, Image{URL: absoluteURL(thumb), Primary: true})
	}
	for _, key := range []string{"gallery", "images"} {
		list, ok := detail[key].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			var u string
			switch v := item.(type) {
			case string:
				u = v
			case map[string]any:
				u, _ = v["url"].(string)
			}
			if u != "" {
				p.Images = append(p.Images, Image{URL: absoluteURL(u), Primary: len(p.Images) == 0})
			}
		}
		break
	}
}

// fillFromDocument recovers whatever the SSR pass left blank from the
// visible markup, and extracts the description.
func fillFromDocument(p *Product, doc *goquery.Document) {
	if p.Title == "" {
		p.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	if p.Price == nil {
		if m := priceArgRe.FindStringSubmatch(doc.Text()); m != nil {
			raw := strings.ReplaceAll(m[1], ",", "")
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				p.Price = &v
			}
		}
	}

	if len(p.Images) == 0 {
		doc.Find(`div[class*="goods-gallery"] img, div[class*="product-image"] img`).
			EachWithBreak(func(i int, sel *goquery.Selection) bool {
				src, ok := sel.Attr("src")
				if ok && src != "" {
					p.Images = append(p.Images, Image{URL: absoluteURL(src), Primary: i == 0})
				}
				return len(p.Images) < 10
			})
	}

	if p.Description == "" {
		if block := doc.Find(`div[class*="goods-description"], div[class*="product-description"]`).First(); block.Length() > 0 {
			if raw, err := block.Html(); err == nil {
				p.Description = renderDescription(raw)
			}
		}
	}
}

var descPolicy = bluemonday.UGCPolicy()

// renderDescription sanitises a description HTML fragment and converts
// it to markdown. Returns "" when nothing survives.
func renderDescription(fragment string) string {
	clean := descPolicy.Sanitize(fragment)
	md, err := htmltomarkdown.ConvertString(clean)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(md)
}

func strAny(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// priceAny reads a price that is either a number in cents or a decimal
// string with an optional currency sign.
func priceAny(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v / 100, true
		case string:
			raw := strings.NewReplacer("$", "", "¥", "", "￥", "", ",", "").Replace(v)
			if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func absoluteURL(u string) string {
	if strings.HasPrefix(u, "http") {
		return u
	}
	return "https:" + u
}
