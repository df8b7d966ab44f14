package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
)

// ProductPage описывает страницу каталога.
type ProductPage struct {
	Products []model.Product
	Total    int
	Page     int
	Limit    int
}

// ListProducts возвращает страницу каталога. Для покупателей выборка ограничена активными товарами.
func (s *Service) ListProducts(ctx context.Context, f model.ProductFilter) (*ProductPage, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	f.Category = strings.TrimSpace(f.Category)
	f.Search = strings.TrimSpace(f.Search)

	products, total, err := s.repo.ListProducts(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ProductPage{Products: products, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// GetProduct возвращает товар. Неактивный товар виден только администратору.
func (s *Service) GetProduct(ctx context.Context, id int64, includeInactive bool) (*model.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active && !includeInactive {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

// ListReviews возвращает отзывы о товаре.
func (s *Service) ListReviews(ctx context.Context, productID int64) ([]model.Review, error) {
	return s.repo.ListReviews(ctx, productID)
}

// AddReview сохраняет отзыв пользователя. Повторный отзыв того же пользователя заменяет предыдущий.
func (s *Service) AddReview(ctx context.Context, userID, productID int64, rating int, comment string) (*model.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	comment = strings.TrimSpace(comment)
	if len([]rune(comment)) > 2000 {
		return nil, fmt.Errorf("%w: comment is too long", ErrInvalidInput)
	}

	if _, err := s.GetProduct(ctx, productID, false); err != nil {
		return nil, err
	}

	return s.repo.SaveReview(ctx, model.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
	})
}

// CreateProduct добавляет товар в каталог.
func (s *Service) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	if err := validateProduct(&p); err != nil {
		return nil, err
	}
	return s.repo.CreateProduct(ctx, p)
}

// UpdateProduct изменяет товар каталога.
func (s *Service) UpdateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	if p.ID <= 0 {
		return nil, fmt.Errorf("%w: product id", ErrInvalidInput)
	}
	if err := validateProduct(&p); err != nil {
		return nil, err
	}
	return s.repo.UpdateProduct(ctx, p)
}

// DeleteProduct снимает товар с продажи. Товары не удаляются, так как на них ссылаются заказы.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.DeactivateProduct(ctx, id)
}

func validateProduct(p *model.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)

	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case p.Price <= 0:
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	case p.DiscountedPrice != nil && (*p.DiscountedPrice <= 0 || *p.DiscountedPrice > p.Price):
		return fmt.Errorf("%w: discounted price must be between 0 and price", ErrInvalidInput)
	case p.FloorPrice != nil && (*p.FloorPrice <= 0 || *p.FloorPrice > p.Price):
		return fmt.Errorf("%w: floor price must be between 0 and price", ErrInvalidInput)
	}
	return nil
}
