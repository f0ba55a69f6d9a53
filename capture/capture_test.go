package capture

import (
	"strings"
	"testing"
)

const ssrPage = `<!doctype html><html><head>
<script>window.__INITIAL_STATE__ = {"goodsDetail":{"goods_name":"Wireless Earbuds","price":2550,"currency":"CNY","thumb":"//img.example.com/t.jpg","gallery":["//img.example.com/1.jpg","//img.example.com/2.jpg"]}};</script>
</head><body><h1>ignored</h1></body></html>`

const plainPage = `<!doctype html><html><body>
<h1>Desk Lamp</h1>
<span class="price">¥ 89.90</span>
<div class="goods-gallery"><img src="//img.example.com/a.jpg"><img src="https://img.example.com/b.jpg"></div>
<div class="goods-description"><p>Adjustable <b>LED</b> lamp.</p><script>evil()</script></div>
</body></html>`

func TestDetectPageType(t *testing.T) {
	cases := []struct {
		url  string
		want PageType
	}{
		{url: "https://www.example.com/601099512345.html", want: PageProduct},
		{url: "https://www.example.com/search_result.html?search_key=lamp&page=1", want: PageSearch},
		{url: "https://www.example.com/about", want: PageOther},
	}
	for _, tc := range cases {
		if got := DetectPageType(tc.url); got != tc.want {
			t.Errorf("DetectPageType(%q): got %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestParseProduct_EmbeddedJSON(t *testing.T) {
	p, err := ParseProduct(ssrPage, "https://www.example.com/601099512345.html")
	if err != nil {
		t.Fatalf("ParseProduct: %v", err)
	}

	if p.GoodsID != "601099512345" {
		t.Errorf("goods_id: got %q", p.GoodsID)
	}
	if p.Title != "Wireless Earbuds" {
		t.Errorf("title: got %q", p.Title)
	}
	if p.Price == nil || *p.Price != 25.50 {
		t.Errorf("price: got %v, want 25.50", p.Price)
	}
	if p.Currency != "CNY" {
		t.Errorf("currency: got %q", p.Currency)
	}
	if len(p.Images) != 3 {
		t.Fatalf("images: got %d, want 3", len(p.Images))
	}
	if !p.Images[0].Primary || p.Images[0].URL != "https://img.example.com/t.jpg" {
		t.Errorf("primary image: got %+v", p.Images[0])
	}
}

func TestParseProduct_HTMLFallback(t *testing.T) {
	p, err := ParseProduct(plainPage, "https://www.example.com/777.html")
	if err != nil {
		t.Fatalf("ParseProduct: %v", err)
	}

	if p.Title != "Desk Lamp" {
		t.Errorf("title: got %q", p.Title)
	}
	if p.Price == nil || *p.Price != 89.90 {
		t.Errorf("price: got %v, want 89.90", p.Price)
	}
	if len(p.Images) != 2 {
		t.Fatalf("images: got %d, want 2", len(p.Images))
	}
	if p.Images[0].URL != "https://img.example.com/a.jpg" {
		t.Errorf("image url: got %q", p.Images[0].URL)
	}
}

func TestParseProduct_DescriptionMarkdown(t *testing.T) {
	p, err := ParseProduct(plainPage, "https://www.example.com/777.html")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(p.Description, "**LED**") {
		t.Errorf("description: got %q, want bold LED markdown", p.Description)
	}
	if strings.Contains(p.Description, "evil") {
		t.Errorf("description: script content survived sanitisation: %q", p.Description)
	}
}

func TestParseProduct_NoGoodsID(t *testing.T) {
	if _, err := ParseProduct("<html></html>", "https://www.example.com/about"); err == nil {
		t.Fatal("ParseProduct: got nil error for URL without goods ID")
	}
}

func TestParseProduct_MalformedJSONFallsBack(t *testing.T) {
	page := `<script>window.__INITIAL_STATE__ = {broken};</script><h1>Fallback Title</h1>`
	p, err := ParseProduct(page, "https://www.example.com/1.html")
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Fallback Title" {
		t.Errorf("title: got %q, want Fallback Title", p.Title)
	}
}

func TestPriceAny_StringForms(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{in: "25.50", want: 25.50},
		{in: "$1,299.00", want: 1299},
		{in: float64(199), want: 1.99},
	}
	for _, tc := range cases {
		got, ok := priceAny(map[string]any{"price": tc.in}, "price")
		if !ok {
			t.Errorf("priceAny(%v): not ok", tc.in)
			continue
		}
		if got != tc.want {
			t.Errorf("priceAny(%v): got %v, want %v", tc.in, got, tc.want)
		}
	}
}
