package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-foodorder/internal/auth"
	"github.com/imrishuroy/go-foodorder/internal/cart"
	"github.com/imrishuroy/go-foodorder/internal/catalog"
	"github.com/imrishuroy/go-foodorder/internal/idempotency"
	"github.com/imrishuroy/go-foodorder/internal/notify"
	"github.com/imrishuroy/go-foodorder/internal/orders"
	"github.com/imrishuroy/go-foodorder/internal/payment"
	"github.com/imrishuroy/go-foodorder/internal/users"
	"github.com/imrishuroy/go-foodorder/internal/validation"
)

// Deps groups everything the HTTP layer talks to. Payments and Hub may be nil
// when the feature is not configured.
type Deps struct {
	Log         *slog.Logger
	Validate    *validatorv10.Validate
	Tokens      *auth.Tokens
	Auth        *auth.Service
	Users       *users.Store
	Catalog     *catalog.Store
	Cart        *cart.Store
	Orders      *orders.Manager
	Idempotency *idempotency.Store
	Payments    *payment.Reconciler
	Hub         *notify.Hub
}

type api struct {
	Deps
}

// Register mounts every route on r.
func Register(r *gin.Engine, d Deps) {
	if d.Validate == nil {
		d.Validate = validation.New()
	}
	h := &api{Deps: d}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/auth/register", h.register)
	r.POST("/auth/login", h.login)
	r.POST("/auth/forgot-password", h.forgotPassword)
	r.POST("/auth/reset-password", h.resetPassword)

	r.GET("/categories", h.listCategories)
	r.GET("/categories/:id", h.getCategory)
	r.GET("/dishes", h.listDishes)
	r.GET("/dishes/:id", h.getDish)

	if d.Payments != nil {
		r.GET("/payments/vnpay/return", h.paymentReturn)
		r.GET("/payments/vnpay/ipn", h.paymentIPN)
	}

	authed := r.Group("/", auth.Guard(d.Tokens))
	authed.GET("/me", h.me)
	authed.PUT("/me", h.updateMe)
	authed.PUT("/me/password", h.changePassword)

	authed.GET("/cart", h.viewCart)
	authed.POST("/cart/items", h.addCartItem)
	authed.PUT("/cart/items/:dish_id", h.setCartItem)
	authed.DELETE("/cart/items/:dish_id", h.removeCartItem)
	authed.DELETE("/cart", h.clearCart)

	authed.POST("/orders", h.createOrder)
	authed.POST("/orders/checkout", h.checkout)
	authed.GET("/orders", h.listMyOrders)
	authed.GET("/orders/:id", h.getOrder)
	authed.POST("/orders/:id/cancel", h.cancelOrder)

	if d.Payments != nil {
		authed.POST("/payments/vnpay/create", h.createPayment)
		authed.GET("/orders/:id/payments", h.listPayments)
	}

	admin := authed.Group("/admin", auth.RequireAdmin())
	admin.POST("/categories", h.createCategory)
	admin.PUT("/categories/:id", h.updateCategory)
	admin.DELETE("/categories/:id", h.deleteCategory)
	admin.POST("/dishes", h.createDish)
	admin.PUT("/dishes/:id", h.updateDish)
	admin.DELETE("/dishes/:id", h.deleteDish)
	admin.GET("/orders", h.listAllOrders)
	admin.PATCH("/orders/:id/status", h.updateOrderStatus)
	admin.GET("/users", h.listUsers)
	admin.PATCH("/users/:id/active", h.setUserActive)
	if d.Payments != nil {
		admin.POST("/payments/:order_id/refund", h.refundPayment)
		admin.GET("/payments/:order_id/query", h.queryPayment)
	}

	if d.Hub != nil {
		r.GET("/ws/orders", auth.Guard(d.Tokens), auth.RequireAdmin(), h.ordersFeed)
	}
}

func identity(c *gin.Context) auth.Identity {
	id, _ := auth.FromContext(c)
	return id
}
