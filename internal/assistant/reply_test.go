package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		tier     Tier
		message  string
		products []int64
	}{
		{
			name:     "direct json",
			text:     `{"message":"Try these","products":[3,1,3]}`,
			tier:     TierDirect,
			message:  "Try these",
			products: []int64{3, 1},
		},
		{
			name:     "string ids and reply key",
			text:     ` {"reply":"Sure","product_ids":["7"," 8"]} `,
			tier:     TierDirect,
			message:  "Sure",
			products: []int64{7, 8},
		},
		{
			name:     "code block",
			text:     "Here you go:\n```json\n{\"message\": \"Warm jackets\", \"products\": [12]}\n```",
			tier:     TierCodeBlock,
			message:  "Warm jackets",
			products: []int64{12},
		},
		{
			name:     "braces inside prose",
			text:     `Sure! {"message": "Use {curly} sizes", "products": [4]} Hope that helps.`,
			tier:     TierBraces,
			message:  "Use {curly} sizes",
			products: []int64{4},
		},
		{
			name:    "plain text",
			text:    "  We have no jackets right now.  ",
			tier:    TierPlainText,
			message: "We have no jackets right now.",
		},
		{
			name:    "json without message",
			text:    `{"products":[1]}`,
			tier:    TierPlainText,
			message: `{"products":[1]}`,
		},
		{
			name:    "broken code block falls back",
			text:    "```json\n{\"message\": \n```",
			tier:    TierPlainText,
			message: "```json\n{\"message\": \n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseReply(tt.text)
			assert.Equal(t, tt.tier, r.Tier)
			assert.Equal(t, tt.message, r.Message)
			assert.Equal(t, tt.products, r.ProductIDs)
			assert.Equal(t, tt.text, r.Raw)
		})
	}
}

func TestFirstObject_SkipsUnbalancedPrefix(t *testing.T) {
	obj, ok := firstObject(`{ broken and then {"message":"ok"}`)
	assert.True(t, ok)
	assert.Equal(t, `{"message":"ok"}`, obj)
}
