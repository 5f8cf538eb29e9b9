package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-foodorder/internal/catalog"
	"github.com/imrishuroy/go-foodorder/internal/validation"
)

func (h *api) listCategories(c *gin.Context) {
	out, err := h.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *api) getCategory(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	cat, err := h.Catalog.GetCategory(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (h *api) createCategory(c *gin.Context) {
	var req validation.CategoryRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	cat := &catalog.Category{Name: req.Name, Description: req.Description, ImageURL: req.ImageURL}
	if err := h.Catalog.CreateCategory(c.Request.Context(), cat); err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (h *api) updateCategory(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req validation.CategoryRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	ctx := c.Request.Context()
	err := h.Catalog.UpdateCategory(ctx, &catalog.Category{ID: id, Name: req.Name, Description: req.Description, ImageURL: req.ImageURL})
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	cat, err := h.Catalog.GetCategory(ctx, id)
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (h *api) deleteCategory(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.Catalog.DeleteCategory(c.Request.Context(), id); err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listDishes accepts an optional category_id filter.
func (h *api) listDishes(c *gin.Context) {
	var categoryID uint
	if raw := c.Query("category_id"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, "category_id must be a positive integer")
			return
		}
		categoryID = uint(n)
	}
	out, err := h.Catalog.ListDishes(c.Request.Context(), categoryID)
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *api) getDish(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	d, err := h.Catalog.GetDish(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func dishFromRequest(req validation.DishRequest) *catalog.Dish {
	d := &catalog.Dish{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Available:   true,
	}
	if req.Available != nil {
		d.Available = *req.Available
	}
	return d
}

func (h *api) createDish(c *gin.Context) {
	var req validation.DishRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	ctx := c.Request.Context()
	d := dishFromRequest(req)
	available := d.Available
	if err := h.Catalog.CreateDish(ctx, d); err != nil {
		writeError(c, h.Log, err)
		return
	}
	// new dishes are inserted available; hide it in a second write when asked
	if !available {
		d.Available = false
		if err := h.Catalog.UpdateDish(ctx, d); err != nil {
			writeError(c, h.Log, err)
			return
		}
	}
	c.JSON(http.StatusCreated, d)
}

func (h *api) updateDish(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req validation.DishRequest
	if err := validation.BindAndValidate(c, &req, h.Validate); err != nil {
		return
	}
	ctx := c.Request.Context()
	d := dishFromRequest(req)
	d.ID = id
	if err := h.Catalog.UpdateDish(ctx, d); err != nil {
		writeError(c, h.Log, err)
		return
	}
	fresh, err := h.Catalog.GetDish(ctx, id)
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, fresh)
}

func (h *api) deleteDish(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.Catalog.DeleteDish(c.Request.Context(), id); err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
