package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-foodorder/internal/validation"
)

// Every cart mutation answers with the refreshed cart.
func (h *api) respondCart(c *gin.Context, status int) {
	v, err := h.Cart.View(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(status, v)
}

func (h *api) viewCart(c *gin.Context) {
	h.respondCart(c, http.StatusOK)
}

func (h *api) addCartItem(c *gin.Context) {
	var req validation.CartItemRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	if err := h.Cart.Add(c.Request.Context(), identity(c).UserID, req.DishID, req.Quantity); err != nil {
		writeError(c, h.Log, err)
		return
	}
	h.respondCart(c, http.StatusOK)
}

func (h *api) setCartItem(c *gin.Context) {
	dishID, ok := uintParam(c, "dish_id")
	if !ok {
		return
	}
	var req validation.CartQuantityRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	if err := h.Cart.SetQuantity(c.Request.Context(), identity(c).UserID, dishID, req.Quantity); err != nil {
		writeError(c, h.Log, err)
		return
	}
	h.respondCart(c, http.StatusOK)
}

func (h *api) removeCartItem(c *gin.Context) {
	dishID, ok := uintParam(c, "dish_id")
	if !ok {
		return
	}
	if err := h.Cart.Remove(c.Request.Context(), identity(c).UserID, dishID); err != nil {
		writeError(c, h.Log, err)
		return
	}
	h.respondCart(c, http.StatusOK)
}

func (h *api) clearCart(c *gin.Context) {
	if err := h.Cart.Clear(c.Request.Context(), identity(c).UserID); err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
