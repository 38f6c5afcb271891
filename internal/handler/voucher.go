package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/voucher-flash-sale/internal/admission"
	"github.com/iliyamo/voucher-flash-sale/internal/model"
	"github.com/iliyamo/voucher-flash-sale/internal/repository"
)

// VoucherHandler exposes the admin surface for flash-sale vouchers.
// Creating a voucher writes the durable row and seeds the Redis stock
// counter the admission gate decrements; both must happen before the
// sale window opens.  All routes require the ADMIN role except Get.
type VoucherHandler struct {
	Vouchers *repository.VoucherRepo
	Gate     *admission.Gate
}

// NewVoucherHandler constructs a VoucherHandler with the provided
// dependencies.  Both must be non-nil.
func NewVoucherHandler(vouchers *repository.VoucherRepo, gate *admission.Gate) *VoucherHandler {
	if vouchers == nil || gate == nil {
		panic("nil dependency passed to NewVoucherHandler")
	}
	return &VoucherHandler{Vouchers: vouchers, Gate: gate}
}

type createVoucherReq struct {
	Title     string    `json:"title"`
	Stock     int64     `json:"stock"`
	BeginTime time.Time `json:"begin_time"`
	EndTime   time.Time `json:"end_time"`
}

// Create handles POST /v1/vouchers.  It validates the sale window and
// stock, inserts the voucher row and seeds the gate's stock counter.
// Returns 201 Created with the voucher id.
func (h *VoucherHandler) Create(c echo.Context) error {
	var req createVoucherReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	if req.Stock <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "stock must be positive"})
	}
	if !req.EndTime.After(req.BeginTime) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be after begin_time"})
	}

	ctx := c.Request().Context()
	v := &model.Voucher{
		Title:     req.Title,
		Stock:     req.Stock,
		BeginTime: req.BeginTime.UTC(),
		EndTime:   req.EndTime.UTC(),
	}
	id, err := h.Vouchers.Create(ctx, v)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create voucher"})
	}
	if err := h.Gate.SeedStock(ctx, id, req.Stock); err != nil {
		// The row exists but the gate cannot admit against it; surface
		// the failure so the admin can retry seeding.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "voucher created but stock seeding failed", "voucher_id": id})
	}
	return c.JSON(http.StatusCreated, echo.Map{"voucher_id": id})
}

// Get handles GET /v1/vouchers/:id.  Alongside the durable row it
// reports the live admission counter so operators can watch a sale burn
// down in real time.
func (h *VoucherHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid voucher id"})
	}
	ctx := c.Request().Context()
	v, err := h.Vouchers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrVoucherNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "voucher not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	live, err := h.Gate.Stock(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read live stock"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":         v.ID,
		"title":      v.Title,
		"stock":      v.Stock,
		"live_stock": live,
		"begin_time": v.BeginTime.Format(time.RFC3339),
		"end_time":   v.EndTime.Format(time.RFC3339),
	})
}
