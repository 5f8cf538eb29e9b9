package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-foodorder/internal/auth"
	"github.com/imrishuroy/go-foodorder/internal/users"
	"github.com/imrishuroy/go-foodorder/internal/validation"
)

func (h *api) register(c *gin.Context) {
	var req validation.RegisterRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	u, err := h.Auth.Register(c.Request.Context(), auth.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *api) login(c *gin.Context) {
	var req validation.LoginRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	sess, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// forgotPassword answers the same way whether or not the email is known.
func (h *api) forgotPassword(c *gin.Context) {
	var req validation.ForgotPasswordRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	if err := h.Auth.RequestReset(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the email is registered, a reset code has been sent"})
}

func (h *api) resetPassword(c *gin.Context) {
	var req validation.ResetPasswordRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	if err := h.Auth.ResetPassword(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func (h *api) me(c *gin.Context) {
	u, err := h.Users.GetByID(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *api) updateMe(c *gin.Context) {
	var req validation.UpdateProfileRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	u, err := h.Users.UpdateProfile(c.Request.Context(), identity(c).UserID, users.Profile{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *api) changePassword(c *gin.Context) {
	var req validation.ChangePasswordRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	if err := h.Auth.ChangePassword(c.Request.Context(), identity(c).UserID, req.OldPassword, req.NewPassword); err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}
