package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
	"github.com/imrishuroy/go-foodorder/internal/validation"
)

func (h *api) listUsers(c *gin.Context) {
	out, err := h.Users.List(c.Request.Context())
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// setUserActive deactivates or reactivates an account. Accounts are never
// deleted so their orders keep a valid owner.
func (h *api) setUserActive(c *gin.Context) {
	userID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req validation.SetActiveRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	caller := identity(c)
	if userID == caller.UserID && !*req.Active {
		writeError(c, h.Log, apperr.ErrForbidden.WithMessage("admins cannot deactivate themselves"))
		return
	}
	ctx := c.Request.Context()
	if err := h.Users.SetActive(ctx, userID, *req.Active); err != nil {
		writeError(c, h.Log, err)
		return
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	h.Log.Info("user active flag changed",
		slog.Uint64("user_id", uint64(userID)),
		slog.Bool("active", u.Active),
		slog.String("by", caller.Username))
	c.JSON(http.StatusOK, u)
}
