package cel

// FilterExpressionExamples lists filters accepted by the latest-result view.
var FilterExpressionExamples = map[string]string{
	"price_only":         `kind == "price"`,
	"big_price_drop":     `kind == "price" && change_percent <= -10.0`,
	"one_competitor":     `competitor == "닥터린"`,
	"top_ten":            `product.rank <= 10`,
	"new_or_traction":    `kind == "new" || new_traction`,
	"rank_climb":         `kind == "rank" && new_value < old_value`,
	"name_contains":      `product.name.contains("루테인")`,
	"expensive_products": `has(product.price) && product.price >= 30000.0`,
}
