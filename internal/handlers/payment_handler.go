package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-foodorder/internal/payment"
	"github.com/imrishuroy/go-foodorder/internal/validation"
)

func (h *api) createPayment(c *gin.Context) {
	var req validation.CreatePaymentRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	redirect, err := h.Payments.CreatePayment(c.Request.Context(), identity(c).Actor(), payment.CreateInput{
		OrderID:  req.OrderID,
		ClientIP: c.ClientIP(),
		BankCode: req.BankCode,
		Locale:   req.Locale,
	})
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, redirect)
}

func (h *api) listPayments(c *gin.Context) {
	out, err := h.Payments.Attempts(c.Request.Context(), identity(c).Actor(), c.Param("id"))
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// paymentReturn is where the customer's browser lands after paying.
func (h *api) paymentReturn(c *gin.Context) {
	out, err := h.Payments.HandleReturn(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// paymentIPN always answers 200; the outcome travels in RspCode.
func (h *api) paymentIPN(c *gin.Context) {
	c.JSON(http.StatusOK, h.Payments.HandleIPN(c.Request.Context(), c.Request.URL.Query()))
}

func (h *api) refundPayment(c *gin.Context) {
	id := identity(c)
	out, err := h.Payments.Refund(c.Request.Context(), id.Actor(), id.Username, c.Param("order_id"), c.ClientIP())
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *api) queryPayment(c *gin.Context) {
	out, err := h.Payments.QueryTransaction(c.Request.Context(), identity(c).Actor(), c.Param("order_id"), c.ClientIP())
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
