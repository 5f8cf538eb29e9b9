package catalog

import "time"

type Category struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"uniqueIndex;not null"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Dish prices are whole VND.
type Dish struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CategoryID  uint      `json:"category_id" gorm:"not null;index"`
	Category    *Category `json:"-" gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	Price       int64     `json:"price" gorm:"not null"`
	ImageURL    string    `json:"image_url"`
	Available   bool      `json:"available" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DishSnapshot is what an order captures about a dish at checkout time.
type DishSnapshot struct {
	ID    uint
	Name  string
	Price int64
}
