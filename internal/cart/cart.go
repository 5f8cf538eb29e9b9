package cart

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
)

// Item is one cart line. Each user has at most one line per dish.
type Item struct {
	UserID    uint      `json:"-" gorm:"primaryKey;autoIncrement:false"`
	DishID    uint      `json:"dish_id" gorm:"primaryKey;autoIncrement:false"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Item) TableName() string { return "cart_items" }

// Line is a cart line joined with the live dish data, for display only.
type Line struct {
	DishID    uint   `json:"dish_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

// View is the cart as shown to the user.
type View struct {
	Items []Line `json:"items"`
	Total int64  `json:"total"`
}

// Store holds per-user carts.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Add increases the quantity of dishID, creating the line when missing.
func (s *Store) Add(ctx context.Context, userID, dishID uint, qty int) error {
	if qty < 1 {
		return apperr.ErrInvalidQuantity
	}
	if err := s.requireDish(ctx, dishID); err != nil {
		return err
	}
	item := Item{UserID: userID, DishID: dishID, Quantity: qty}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "dish_id"}},
		DoUpdates: clause.Assignments(map[string]any{"quantity": gorm.Expr("cart_items.quantity + ?", qty), "updated_at": time.Now()}),
	}).Create(&item).Error
	if err != nil {
		return apperr.Storage("add cart item", err)
	}
	return nil
}

// SetQuantity overwrites a line; zero removes it.
func (s *Store) SetQuantity(ctx context.Context, userID, dishID uint, qty int) error {
	if qty < 0 {
		return apperr.ErrInvalidQuantity
	}
	if qty == 0 {
		return s.Remove(ctx, userID, dishID)
	}
	res := s.db.WithContext(ctx).Model(&Item{}).
		Where("user_id = ? AND dish_id = ?", userID, dishID).
		Update("quantity", qty)
	if res.Error != nil {
		return apperr.Storage("update cart item", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrDishNotFound.WithMessage("dish %d is not in the cart", dishID)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, userID, dishID uint) error {
	err := s.db.WithContext(ctx).Where("user_id = ? AND dish_id = ?", userID, dishID).Delete(&Item{}).Error
	if err != nil {
		return apperr.Storage("remove cart item", err)
	}
	return nil
}

// Clear empties the cart of userID.
func (s *Store) Clear(ctx context.Context, userID uint) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Item{}).Error; err != nil {
		return apperr.Storage("clear cart", err)
	}
	return nil
}

// Items returns the raw lines, oldest first.
func (s *Store) Items(ctx context.Context, userID uint) ([]Item, error) {
	var out []Item
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at, dish_id").Find(&out).Error; err != nil {
		return nil, apperr.Storage("list cart", err)
	}
	return out, nil
}

// View joins the cart with current dish prices. Prices shown here are advisory;
// checkout re-resolves every dish.
func (s *Store) View(ctx context.Context, userID uint) (View, error) {
	var lines []Line
	err := s.db.WithContext(ctx).Table("cart_items").
		Select("cart_items.dish_id, dishes.name, dishes.price, cart_items.quantity, dishes.price * cart_items.quantity AS line_total").
		Joins("JOIN dishes ON dishes.id = cart_items.dish_id").
		Where("cart_items.user_id = ?", userID).
		Order("cart_items.created_at, cart_items.dish_id").
		Scan(&lines).Error
	if err != nil {
		return View{}, apperr.Storage("view cart", err)
	}
	v := View{Items: lines}
	if v.Items == nil {
		v.Items = []Line{}
	}
	for _, l := range lines {
		v.Total += l.LineTotal
	}
	return v, nil
}

func (s *Store) requireDish(ctx context.Context, dishID uint) error {
	var n int64
	err := s.db.WithContext(ctx).Table("dishes").Where("id = ? AND available = ?", dishID, true).Count(&n).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Storage("check dish", err)
	}
	if n == 0 {
		return apperr.ErrDishNotFound.WithMessage("dish %d not found", dishID)
	}
	return nil
}
