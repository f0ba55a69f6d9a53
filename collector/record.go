package collector

import (
	"encoding/json"

	"github.com/skuwatch/skuprobe/capture"
	"github.com/skuwatch/skuprobe/inspect"
	"github.com/skuwatch/skuprobe/store"
)

// buildRecord merges the primary capture with the instrumented
// extraction result into one storable product. Analytics failure still
// yields a record; the fields/samples columns just stay empty.
func buildRecord(p *capture.Product, res *inspect.Result) *store.Product {
	rec := &store.Product{
		GoodsID:  p.GoodsID,
		PageURL:  p.PageURL,
		Title:    p.Title,
		Price:    p.Price,
		Currency: p.Currency,
	}
	if len(p.Images) > 0 {
		rec.Images = marshalOr(p.Images, "[]")
	}

	if res == nil {
		return rec
	}

	rec.Category = res.Fields.Text("category")
	rec.ShopName = res.Fields.Text("shop_name")

	if len(res.Fields) > 0 {
		rec.Fields = marshalOr(flattenFields(res.Fields), "{}")
	}
	if len(res.Samples) > 0 {
		rec.Samples = marshalOr(res.Samples, "[]")
	}
	if len(res.Auxiliary) > 0 {
		rec.Auxiliary = marshalOr(res.Auxiliary, "[]")
	}
	return rec
}

// flattenFields renders a FieldMap as plain JSON values: numbers where
// the value parsed as numeric, raw strings otherwise.
func flattenFields(fm inspect.FieldMap) map[string]any {
	out := make(map[string]any, len(fm))
	for name, v := range fm {
		if v.IsNum {
			out[name] = v.Num
		} else {
			out[name] = v.Raw
		}
	}
	return out
}

func marshalOr(v any, fallback string) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(b)
}
