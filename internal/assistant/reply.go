package assistant

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Tier показывает, каким способом из ответа модели удалось извлечь структуру.
type Tier int

const (
	// TierDirect: весь ответ является JSON-объектом.
	TierDirect Tier = iota
	// TierCodeBlock: JSON найден внутри блока ``` ```.
	TierCodeBlock
	// TierBraces: JSON найден по парным фигурным скобкам в тексте.
	TierBraces
	// TierPlainText: структура не найдена, ответ используется как текст.
	TierPlainText
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierCodeBlock:
		return "code_block"
	case TierBraces:
		return "braces"
	default:
		return "plain_text"
	}
}

// Reply описывает разобранный ответ модели.
type Reply struct {
	Tier       Tier
	Message    string
	ProductIDs []int64
	Raw        string
}

type productRef int64

// UnmarshalJSON принимает идентификатор как числом, так и строкой.
func (p *productRef) UnmarshalJSON(b []byte) error {
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*p = productRef(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return err
	}
	*p = productRef(n)
	return nil
}

type replyPayload struct {
	Message    string       `json:"message"`
	Reply      string       `json:"reply"`
	Products   []productRef `json:"products"`
	ProductIDs []productRef `json:"product_ids"`
}

var codeBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ParseReply извлекает сообщение и рекомендованные товары из свободного текста модели.
// Уровни пробуются по порядку: весь текст, блок кода, парные скобки, простой текст.
func ParseReply(text string) Reply {
	raw := strings.TrimSpace(text)

	if r, ok := decodePayload(raw); ok {
		r.Tier, r.Raw = TierDirect, text
		return r
	}

	if m := codeBlock.FindStringSubmatch(raw); m != nil {
		if r, ok := decodePayload(strings.TrimSpace(m[1])); ok {
			r.Tier, r.Raw = TierCodeBlock, text
			return r
		}
	}

	if obj, ok := firstObject(raw); ok {
		if r, ok := decodePayload(obj); ok {
			r.Tier, r.Raw = TierBraces, text
			return r
		}
	}

	return Reply{Tier: TierPlainText, Message: raw, Raw: text}
}

func decodePayload(s string) (Reply, bool) {
	if !strings.HasPrefix(s, "{") {
		return Reply{}, false
	}

	var p replyPayload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Reply{}, false
	}

	msg := strings.TrimSpace(p.Message)
	if msg == "" {
		msg = strings.TrimSpace(p.Reply)
	}
	if msg == "" {
		return Reply{}, false
	}

	refs := p.Products
	if len(refs) == 0 {
		refs = p.ProductIDs
	}

	r := Reply{Message: msg}
	seen := make(map[int64]bool, len(refs))
	for _, ref := range refs {
		id := int64(ref)
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		r.ProductIDs = append(r.ProductIDs, id)
	}
	return r, true
}

// firstObject возвращает первый сбалансированный JSON-объект в тексте.
// Скобки внутри строковых литералов не учитываются.
func firstObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		depth, inString, escaped := 0, false, false
		for i := start; i < len(s); i++ {
			ch := s[i]
			switch {
			case escaped:
				escaped = false
			case inString && ch == '\\':
				escaped = true
			case ch == '"':
				inString = !inString
			case inString:
			case ch == '{':
				depth++
			case ch == '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}

		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}
