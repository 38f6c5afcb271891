package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/voucher-flash-sale/internal/repository"
	"github.com/iliyamo/voucher-flash-sale/internal/service"
)

// OrderHandler exposes the buyer-facing half of the pipeline: placing
// an order (synchronous admission, asynchronous fulfillment) and
// polling the result.  JWT middleware runs before every method, so a
// user id is always available in the context.
type OrderHandler struct {
	Orders     *service.OrderService
	OrderStore *repository.OrderRepo
}

// NewOrderHandler constructs an OrderHandler.  Both dependencies must
// be non-nil.
func NewOrderHandler(orders *service.OrderService, store *repository.OrderRepo) *OrderHandler {
	if orders == nil || store == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	return &OrderHandler{Orders: orders, OrderStore: store}
}

// Place handles POST /v1/vouchers/:id/order.  On acceptance it returns
// 202 Accepted with the order id immediately — the order row does not
// exist yet; the fulfillment worker writes it shortly after.  All
// rejections are final and must not be retried by the client.
func (h *OrderHandler) Place(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	voucherID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || voucherID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid voucher id"})
	}

	orderID, err := h.Orders.PlaceOrder(c.Request().Context(), voucherID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVoucherNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "voucher not found"})
		case errors.Is(err, service.ErrNotStarted):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "the sale has not started yet"})
		case errors.Is(err, service.ErrEnded):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "the sale has ended"})
		case errors.Is(err, service.ErrOutOfStock):
			return c.JSON(http.StatusConflict, echo.Map{"error": "out of stock"})
		case errors.Is(err, service.ErrDuplicateOrder):
			return c.JSON(http.StatusConflict, echo.Map{"error": "you have already placed an order for this voucher"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to place order"})
	}
	return c.JSON(http.StatusAccepted, echo.Map{"order_id": orderID})
}

// Get handles GET /v1/orders/:id.  Because confirmation is
// asynchronous, a 404 for a freshly accepted id usually just means the
// worker has not committed the row yet; clients poll until it appears.
// Orders belonging to other users are reported as not found rather than
// forbidden, to avoid leaking order ids.
func (h *OrderHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	o, err := h.OrderStore.GetByID(c.Request().Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if o.UserID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"order_id":    o.ID,
		"voucher_id":  o.VoucherID,
		"create_time": o.CreateTime.Format(time.RFC3339),
	})
}

// List handles GET /v1/orders.  Returns the authenticated user's
// fulfilled orders, newest first.
func (h *OrderHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orders, err := h.OrderStore.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load orders"})
	}
	items := make([]echo.Map, 0, len(orders))
	for _, o := range orders {
		items = append(items, echo.Map{
			"order_id":    o.ID,
			"voucher_id":  o.VoucherID,
			"create_time": o.CreateTime.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
