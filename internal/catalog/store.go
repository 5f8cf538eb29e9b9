package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
	"github.com/imrishuroy/go-foodorder/internal/database"
)

// Store is the category and dish CRUD layer.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, apperr.Storage("list categories", err)
	}
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, id uint) (*Category, error) {
	var c Category
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrCategoryNotFound
	}
	if err != nil {
		return nil, apperr.Storage("get category", err)
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *Category) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.ErrConflict.WithMessage("category %q already exists", c.Name)
		}
		return apperr.Storage("create category", err)
	}
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *Category) error {
	res := s.db.WithContext(ctx).Model(&Category{}).Where("id = ?", c.ID).Updates(map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"image_url":   c.ImageURL,
	})
	if res.Error != nil {
		if database.IsUniqueViolation(res.Error) {
			return apperr.ErrConflict.WithMessage("category %q already exists", c.Name)
		}
		return apperr.Storage("update category", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrCategoryNotFound
	}
	return nil
}

// DeleteCategory refuses to remove a category that still has dishes.
func (s *Store) DeleteCategory(ctx context.Context, id uint) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Dish{}).Where("category_id = ?", id).Count(&n).Error; err != nil {
		return apperr.Storage("count dishes", err)
	}
	if n > 0 {
		return apperr.ErrConflict.WithMessage("category still has %d dishes", n)
	}
	res := s.db.WithContext(ctx).Delete(&Category{}, id)
	if res.Error != nil {
		return apperr.Storage("delete category", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrCategoryNotFound
	}
	return nil
}

// ListDishes returns dishes, optionally restricted to one category.
func (s *Store) ListDishes(ctx context.Context, categoryID uint) ([]Dish, error) {
	q := s.db.WithContext(ctx).Order("id")
	if categoryID != 0 {
		q = q.Where("category_id = ?", categoryID)
	}
	var out []Dish
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.Storage("list dishes", err)
	}
	return out, nil
}

func (s *Store) GetDish(ctx context.Context, id uint) (*Dish, error) {
	var d Dish
	err := s.db.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrDishNotFound.WithMessage("dish %d not found", id)
	}
	if err != nil {
		return nil, apperr.Storage("get dish", err)
	}
	return &d, nil
}

func (s *Store) CreateDish(ctx context.Context, d *Dish) error {
	if _, err := s.GetCategory(ctx, d.CategoryID); err != nil {
		return err
	}
	d.Available = true
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return apperr.Storage("create dish", err)
	}
	return nil
}

func (s *Store) UpdateDish(ctx context.Context, d *Dish) error {
	if _, err := s.GetCategory(ctx, d.CategoryID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&Dish{}).Where("id = ?", d.ID).Updates(map[string]any{
		"category_id": d.CategoryID,
		"name":        d.Name,
		"description": d.Description,
		"price":       d.Price,
		"image_url":   d.ImageURL,
		"available":   d.Available,
	})
	if res.Error != nil {
		return apperr.Storage("update dish", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrDishNotFound.WithMessage("dish %d not found", d.ID)
	}
	return nil
}

// DeleteDish removes a dish. Historical orders keep their name/price snapshot.
func (s *Store) DeleteDish(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Dish{}, id)
	if res.Error != nil {
		return apperr.Storage("delete dish", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrDishNotFound.WithMessage("dish %d not found", id)
	}
	return nil
}

// ResolveDish returns the live name and price used to price an order line.
// Unavailable dishes resolve as not found.
func (s *Store) ResolveDish(ctx context.Context, id uint) (DishSnapshot, error) {
	d, err := s.GetDish(ctx, id)
	if err != nil {
		return DishSnapshot{}, err
	}
	if !d.Available {
		return DishSnapshot{}, apperr.ErrDishNotFound.WithMessage("dish %d is not available", id)
	}
	return DishSnapshot{ID: d.ID, Name: d.Name, Price: d.Price}, nil
}
