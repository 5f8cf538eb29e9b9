package validation

// RegisterRequest is the payload for POST /auth/register
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=100"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Address  string `json:"address" validate:"max=255"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72,nefield=OldPassword"`
}

type UpdateProfileRequest struct {
	FullName string `json:"full_name" validate:"max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Address  string `json:"address" validate:"max=255"`
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

// DishRequest is used for both create and update. Available defaults to true
// when omitted.
type DishRequest struct {
	CategoryID  uint   `json:"category_id" validate:"required"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
	Price       int64  `json:"price" validate:"required,gt=0,lte=1000000000"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	Available   *bool  `json:"available"`
}

type CartItemRequest struct {
	DishID   uint `json:"dish_id" validate:"required"`
	Quantity int  `json:"quantity" validate:"required,min=1,max=99"`
}

// CartQuantityRequest sets an absolute quantity; zero removes the line.
type CartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=99"`
}

// OrderItem is a single requested line. Any price or name sent by the client is
// ignored; the server prices every dish itself.
type OrderItem struct {
	DishID   uint `json:"dish_id" validate:"required"`
	Quantity int  `json:"quantity" validate:"required,min=1,max=99"`
}

// CreateOrderRequest is the payload for POST /orders. An empty items list is
// left to the order lifecycle, which reports it as an empty cart.
type CreateOrderRequest struct {
	Items   []OrderItem `json:"items" validate:"dive"`
	Address string      `json:"address" validate:"required,max=255"`
	Phone   string      `json:"phone" validate:"required,phone"`
}

// CheckoutRequest is the payload for POST /orders/checkout.
type CheckoutRequest struct {
	Address string `json:"address" validate:"required,max=255"`
	Phone   string `json:"phone" validate:"required,phone"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Confirmed Cancelled"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type CreatePaymentRequest struct {
	OrderID  string `json:"order_id" validate:"required,uuid"`
	BankCode string `json:"bank_code" validate:"omitempty,alphanum,max=20"`
	Locale   string `json:"locale" validate:"omitempty,oneof=vn en"`
}
