package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/pricing"
	"github.com/mmeshcher/storefront/internal/settings"
)

var (
	// ErrAssistantDisabled возвращается, если помощник выключен в настройках или не настроен.
	ErrAssistantDisabled = errors.New("assistant is disabled")
	// ErrInvalidMessage возвращается для пустого или слишком длинного сообщения.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrBusy возвращается, если провайдер модели перегружен.
	ErrBusy = errors.New("assistant is busy")
)

const (
	maxMessageRunes = 1000
	maxHistory      = 10
	catalogSize     = 50
	maxSuggestions  = 4
	maxRetryAfter   = 3 * time.Second
)

// Completer отправляет диалог модели.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Catalog описывает доступ к каталогу, нужный помощнику.
type Catalog interface {
	ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, int, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error)
}

// Answer описывает ответ помощника покупателю.
type Answer struct {
	Message  string
	Products []model.Product
	Tier     Tier
}

// Service отвечает на вопросы покупателей с учётом каталога магазина.
type Service struct {
	client   Completer
	catalog  Catalog
	settings *settings.Holder
	logger   *zap.Logger
}

// NewService создаёт сервис помощника. Если client равен nil, помощник считается выключенным.
func NewService(client Completer, catalog Catalog, holder *settings.Holder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, catalog: catalog, settings: holder, logger: logger}
}

// Enabled сообщает, доступен ли помощник.
func (s *Service) Enabled() bool {
	if s == nil || s.client == nil {
		return false
	}
	return s.settings == nil || s.settings.Get().AssistantEnabled
}

// Chat отвечает на сообщение пользователя. В ответ попадают только активные товары.
func (s *Service) Chat(ctx context.Context, userID int64, message string, history []Message) (*Answer, error) {
	if !s.Enabled() {
		return nil, ErrAssistantDisabled
	}

	message = strings.TrimSpace(message)
	if message == "" || len([]rune(message)) > maxMessageRunes {
		return nil, ErrInvalidMessage
	}

	prompt, err := s.systemPrompt(ctx)
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, maxHistory+2)
	msgs = append(msgs, Message{Role: RoleSystem, Content: prompt})
	msgs = append(msgs, sanitizeHistory(history)...)
	msgs = append(msgs, Message{Role: RoleUser, Content: message})

	text, err := s.complete(ctx, msgs)
	if err != nil {
		return nil, err
	}

	reply := ParseReply(text)
	if reply.Tier != TierDirect {
		s.logger.Debug("assistant reply parsed with fallback", zap.Int64("user_id", userID), zap.Stringer("tier", reply.Tier))
	}

	products, err := s.resolveProducts(ctx, reply.ProductIDs)
	if err != nil {
		return nil, err
	}

	return &Answer{Message: reply.Message, Products: products, Tier: reply.Tier}, nil
}

// complete вызывает модель и один раз повторяет запрос, если провайдер попросил подождать недолго.
func (s *Service) complete(ctx context.Context, msgs []Message) (string, error) {
	text, err := s.client.Complete(ctx, msgs)

	var limited *RateLimitedError
	if errors.As(err, &limited) {
		if limited.RetryAfter > maxRetryAfter {
			return "", ErrBusy
		}
		if limited.RetryAfter > 0 {
			timer := time.NewTimer(limited.RetryAfter)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}
		text, err = s.client.Complete(ctx, msgs)
		if errors.As(err, &limited) {
			return "", ErrBusy
		}
	}
	if err != nil {
		return "", fmt.Errorf("assistant completion: %w", err)
	}
	return text, nil
}

func (s *Service) systemPrompt(ctx context.Context) (string, error) {
	products, _, err := s.catalog.ListProducts(ctx, model.ProductFilter{
		OnlyActive: true,
		Sort:       "rating",
		Page:       1,
		Limit:      catalogSize,
	})
	if err != nil {
		return "", fmt.Errorf("load catalog: %w", err)
	}

	storeName := "the store"
	if s.settings != nil && s.settings.Get().StoreName != "" {
		storeName = s.settings.Get().StoreName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the shopping assistant of %s. Recommend only products from the catalog below.\n", storeName)
	b.WriteString(`Answer with a JSON object {"message": "<answer for the customer>", "products": [<product ids>]}.` + "\n")
	b.WriteString("Catalog:\n")
	for _, p := range products {
		fmt.Fprintf(&b, "- id=%d | %s | %s | %s | in stock: %d | rating %.1f\n",
			p.ID, p.Name, p.Category, pricing.FromCents(pricing.UnitPrice(p)).StringFixed(2), p.Stock, p.Rating)
	}
	return b.String(), nil
}

func (s *Service) resolveProducts(ctx context.Context, ids []int64) ([]model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxSuggestions {
		ids = ids[:maxSuggestions]
	}

	found, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load suggested products: %w", err)
	}

	res := make([]model.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := found[id]; ok && p.Active {
			res = append(res, p)
		}
	}
	return res, nil
}

func sanitizeHistory(history []Message) []Message {
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	res := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if r := []rune(content); len(r) > maxMessageRunes {
			content = string(r[:maxMessageRunes])
		}
		res = append(res, Message{Role: m.Role, Content: content})
	}
	return res
}
