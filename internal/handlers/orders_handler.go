package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
	"github.com/imrishuroy/go-foodorder/internal/idempotency"
	"github.com/imrishuroy/go-foodorder/internal/orders"
	"github.com/imrishuroy/go-foodorder/internal/validation"
)

// IdempotencyKeyHeader is optional on order creation. When present a retried
// request returns the first response instead of creating a second order.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

func (h *api) idempotencyKey(c *gin.Context) (string, bool) {
	key := c.GetHeader(IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLen {
		badRequest(c, fmt.Sprintf("%s must be at most %d characters", IdempotencyKeyHeader, maxIdempotencyKeyLen))
		return "", false
	}
	return key, true
}

func (h *api) createOrder(c *gin.Context) {
	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	key, ok := h.idempotencyKey(c)
	if !ok {
		return
	}
	id := identity(c)
	lines := make([]orders.LineRequest, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, orders.LineRequest{DishID: it.DishID, Quantity: it.Quantity})
	}
	o, err := h.Orders.CreateOrder(c.Request.Context(), orders.CreateInput{
		UserID:         id.UserID,
		Items:          lines,
		Address:        req.Address,
		Phone:          req.Phone,
		IdempotencyKey: key,
	})
	h.respondCreated(c, key, o, err)
}

func (h *api) checkout(c *gin.Context) {
	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	key, ok := h.idempotencyKey(c)
	if !ok {
		return
	}
	o, err := h.Orders.CreateFromCart(c.Request.Context(), identity(c).UserID, req.Address, req.Phone, key)
	h.respondCreated(c, key, o, err)
}

// respondCreated finishes both create paths: it replays on a reused key and
// otherwise stores the response under the key before sending it.
func (h *api) respondCreated(c *gin.Context, key string, o *orders.Order, err error) {
	ctx := c.Request.Context()
	userID := identity(c).UserID
	if errors.Is(err, orders.ErrIdempotencyConflict) {
		h.replay(c, key)
		return
	}
	if err != nil {
		writeError(c, h.Log, err)
		return
	}

	body, err := json.Marshal(o)
	if err != nil {
		if key != "" {
			_ = h.Idempotency.MarkFailed(ctx, userID, key, fmt.Sprintf("marshal_response_failed: %v", err))
		}
		writeError(c, h.Log, err)
		return
	}
	if key != "" {
		if err := h.Idempotency.MarkDone(ctx, userID, key, string(body), http.StatusCreated); err != nil {
			// the order exists; a later replay falls back to reading it
			h.Log.Warn("mark idempotency key done failed", slog.String("order_id", o.ID), slog.Any("error", err))
		}
	}
	c.Header("Location", "/orders/"+o.ID)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

func (h *api) replay(c *gin.Context, key string) {
	ctx := c.Request.Context()
	id := identity(c)
	rec, err := h.Idempotency.Get(ctx, id.UserID, key)
	if err != nil {
		writeError(c, h.Log, apperr.Storage("get idempotency record", err))
		return
	}
	if rec == nil {
		// expired between the insert attempt and this read
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "idempotency_conflict", "message": "retry the request"})
		return
	}

	c.Header("Idempotent-Replayed", "true")
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" && json.Valid([]byte(rec.ResponseBody)) {
			c.Header("Location", "/orders/"+rec.OrderID)
			c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
			return
		}
		h.replayOrder(c, rec.OrderID)
	case idempotency.StatusInProgress:
		// the order row commits with the record, so it is readable already
		h.replayOrder(c, rec.OrderID)
	case idempotency.StatusFailed:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":    "previous_attempt_failed",
			"message":  "the first request with this key failed, use a new key",
			"order_id": rec.OrderID,
		})
	default:
		writeError(c, h.Log, fmt.Errorf("unknown idempotency status %q", rec.Status))
	}
}

func (h *api) replayOrder(c *gin.Context, orderID string) {
	o, err := h.Orders.GetOrder(c.Request.Context(), orderID, identity(c).Actor())
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *api) listMyOrders(c *gin.Context) {
	out, err := h.Orders.ListOrdersForUser(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *api) listAllOrders(c *gin.Context) {
	out, err := h.Orders.ListAllOrders(c.Request.Context(), identity(c).Actor())
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *api) getOrder(c *gin.Context) {
	o, err := h.Orders.GetOrder(c.Request.Context(), c.Param("id"), identity(c).Actor())
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *api) cancelOrder(c *gin.Context) {
	o, err := h.Orders.CancelOrder(c.Request.Context(), c.Param("id"), identity(c).Actor())
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *api) updateOrderStatus(c *gin.Context) {
	var req validation.UpdateStatusRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	o, err := h.Orders.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status, identity(c).Actor())
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
