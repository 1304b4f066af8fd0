package handler

import (
	"net/http"

	"mart/internal/config"
	"mart/internal/domain/model"
	"mart/internal/middleware"
	"mart/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /api/ordersのHTTP
type OrderHandler struct {
	orders *usecase.OrderUsecase
	status *usecase.OrderStatusUsecase
}

// DI
func NewOrderHandler(orders *usecase.OrderUsecase, status *usecase.OrderStatusUsecase) *OrderHandler {
	return &OrderHandler{orders: orders, status: status}
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type UpdateStatusRequest struct {
	NewStatus string `json:"new_status"`
	Notes     string `json:"notes"`
	Location  string `json:"location"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	//追跡は未認証で叩ける
	e.GET("/api/orders/track/:orderNumber", h.track)

	g := e.Group("/api/orders")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/statistics", h.statistics)
	g.GET("/number/:orderNumber", h.detailByNumber)
	g.GET("/:id", h.detail)
	g.POST("/:id/cancel", h.cancel)

	admin := e.Group("/api/admin/orders")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())

	admin.GET("", h.listByStatus)
	admin.GET("/search", h.search)
	admin.PATCH("/:id/status", h.updateStatus)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON(http.StatusUnauthorized, "unauthorized"))
	}

	var req usecase.CreateOrderInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON(http.StatusBadRequest, "invalid body"))
	}

	out, err := h.orders.Create(c.Request().Context(), userID, req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON(http.StatusUnauthorized, "unauthorized"))
	}

	page, limit := pageParams(c)
	out, err := h.orders.ListByUser(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON(http.StatusUnauthorized, "unauthorized"))
	}

	out, err := h.orders.GetByID(c.Request().Context(), userID, isAdminFromContext(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detailByNumber(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON(http.StatusUnauthorized, "unauthorized"))
	}

	out, err := h.orders.GetByNumber(c.Request().Context(), userID, isAdminFromContext(c), c.Param("orderNumber"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON(http.StatusUnauthorized, "unauthorized"))
	}

	var req CancelOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON(http.StatusBadRequest, "invalid body"))
	}

	out, err := h.status.Cancel(c.Request().Context(), userID, isAdminFromContext(c), c.Param("id"), req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) track(c echo.Context) error {
	out, err := h.orders.Track(c.Request().Context(), c.Param("orderNumber"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) statistics(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON(http.StatusUnauthorized, "unauthorized"))
	}

	out, err := h.orders.Statistics(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) listByStatus(c echo.Context) error {
	status := model.OrderStatus(c.QueryParam("status"))
	if status == "" {
		return c.JSON(http.StatusBadRequest, errorJSON(http.StatusBadRequest, "status query parameter is required"))
	}

	page, limit := pageParams(c)
	out, err := h.orders.ListByStatus(c.Request().Context(), status, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) search(c echo.Context) error {
	page, limit := pageParams(c)
	out, err := h.orders.Search(c.Request().Context(), c.QueryParam("q"), page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) updateStatus(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON(http.StatusUnauthorized, "unauthorized"))
	}

	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON(http.StatusBadRequest, "invalid body"))
	}

	out, err := h.status.Update(c.Request().Context(), c.Param("id"), usecase.UpdateStatusInput{
		NewStatus: model.OrderStatus(req.NewStatus),
		Notes:     req.Notes,
		Location:  req.Location,
	}, userID, "")
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
