package domain

// Labels is the model's output class order.
var Labels = []string{"一", "丁", "七"}

var explanations = map[string]string{
	"一": "一 (ichi, one) is a single horizontal stroke drawn left to right. Keep it level and press slightly at the end.",
	"丁": "丁 (chō) starts with a horizontal stroke, then a vertical stroke that ends in a hook to the left.",
	"七": "七 (shichi, seven) is a rising horizontal stroke crossed by a vertical stroke that bends right at the bottom.",
}

// Explain returns the canned explanation for a label, or an empty string.
func Explain(label string) string {
	return explanations[label]
}

// Classification is the outcome of running an image through the model.
type Classification struct {
	Label           string
	ConfidenceScore float64
	Explanation     string
}
