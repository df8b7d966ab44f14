package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront/internal/model"
)

const productColumns = `id, name, description, category, images, variants, price, discounted_price, floor_price,
	stock, active, rating, review_count, created_at, updated_at`

// effectivePrice повторяет pricing.UnitPrice для сортировки и фильтрации на стороне БД.
const effectivePrice = `(CASE WHEN discounted_price > 0 AND discounted_price < price THEN discounted_price ELSE price END)`

var productSorts = map[string]string{
	"":           "created_at DESC",
	"newest":     "created_at DESC",
	"price_asc":  effectivePrice + " ASC",
	"price_desc": effectivePrice + " DESC",
	"rating":     "rating DESC, review_count DESC",
	"name":       "name ASC",
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &p.Images, &p.Variants,
		&p.Price, &p.DiscountedPrice, &p.FloorPrice,
		&p.Stock, &p.Active, &p.Rating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProducts(rows pgx.Rows) ([]model.Product, error) {
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func productWhere(f model.ProductFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if f.OnlyActive {
		conds = append(conds, "active")
	}
	if f.Category != "" {
		add("category = ?", f.Category)
	}
	if f.Search != "" {
		add("(name ILIKE ? OR description ILIKE ?)", "%"+f.Search+"%")
	}
	if f.MinPrice != nil {
		add(effectivePrice+" >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add(effectivePrice+" <= ?", *f.MaxPrice)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListProducts возвращает страницу каталога и общее число подходящих под фильтр товаров.
func (r *PostgresRepository) ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, int, error) {
	where, args := productWhere(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	order, ok := productSorts[f.Sort]
	if !ok {
		order = productSorts[""]
	}

	limit, offset := pageArgs(f.Page, f.Limit)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY %s, id LIMIT $%d OFFSET $%d`,
		productColumns, where, order, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select products: %w", err)
	}

	res, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetProductsByIDs возвращает товары по списку идентификаторов. Отсутствующие идентификаторы пропускаются.
func (r *PostgresRepository) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	res := make(map[int64]model.Product, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}

	list, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		res[p.ID] = p
	}
	return res, nil
}

// CreateProduct добавляет товар в каталог.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	created, err := scanProduct(r.pool.QueryRow(ctx,
		`INSERT INTO products (name, description, category, images, variants, price, discounted_price, floor_price, stock, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+productColumns,
		p.Name, p.Description, p.Category, nonNil(p.Images), nonNil(p.Variants),
		p.Price, p.DiscountedPrice, p.FloorPrice, p.Stock, p.Active,
	))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

// UpdateProduct обновляет редактируемые поля товара. Рейтинг и число отзывов не изменяются.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	updated, err := scanProduct(r.pool.QueryRow(ctx,
		`UPDATE products
		 SET name = $2, description = $3, category = $4, images = $5, variants = $6, price = $7,
		     discounted_price = $8, floor_price = $9, stock = $10, active = $11, updated_at = now()
		 WHERE id = $1
		 RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.Category, nonNil(p.Images), nonNil(p.Variants),
		p.Price, p.DiscountedPrice, p.FloorPrice, p.Stock, p.Active,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}

// DeactivateProduct скрывает товар из каталога. Заказы продолжают ссылаться на него.
func (r *PostgresRepository) DeactivateProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListReviews возвращает отзывы о товаре, новые сначала.
func (r *PostgresRepository) ListReviews(ctx context.Context, productID int64) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT pr.id, pr.product_id, pr.user_id, u.name, pr.rating, pr.comment, pr.created_at
		 FROM product_reviews pr
		 JOIN users u ON u.id = pr.user_id
		 WHERE pr.product_id = $1
		 ORDER BY pr.created_at DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	var res []model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		res = append(res, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// SaveReview сохраняет отзыв пользователя (повторный отзыв заменяет прежний)
// и в той же транзакции пересчитывает рейтинг и число отзывов товара.
func (r *PostgresRepository) SaveReview(ctx context.Context, rv model.Review) (*model.Review, error) {
	saved := rv
	err := r.withRetry(ctx, func() error {
		return r.WithinTransaction(ctx, func(tx pgx.Tx) error {
			err := tx.QueryRow(ctx,
				`INSERT INTO product_reviews (product_id, user_id, rating, comment)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (product_id, user_id) DO UPDATE
				 SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, created_at = now()
				 RETURNING id, created_at`,
				rv.ProductID, rv.UserID, rv.Rating, rv.Comment,
			).Scan(&saved.ID, &saved.CreatedAt)
			if err != nil {
				return fmt.Errorf("upsert review: %w", err)
			}

			_, err = tx.Exec(ctx,
				`UPDATE products
				 SET rating = COALESCE((SELECT AVG(rating)::float8 FROM product_reviews WHERE product_id = $1), 0),
				     review_count = (SELECT COUNT(*) FROM product_reviews WHERE product_id = $1),
				     updated_at = now()
				 WHERE id = $1`,
				rv.ProductID,
			)
			if err != nil {
				return fmt.Errorf("recompute rating: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
