package handler

import (
	"net/http"

	"mart/internal/config"
	"mart/internal/middleware"
	"mart/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// /api/paymentsのHTTP
type PaymentHandler struct {
	payments *usecase.PaymentUsecase
	orders   *usecase.OrderUsecase
}

// DI
func NewPaymentHandler(payments *usecase.PaymentUsecase, orders *usecase.OrderUsecase) *PaymentHandler {
	return &PaymentHandler{payments: payments, orders: orders}
}

type InitiatePaymentRequest struct {
	OrderID string `json:"order_id"`
}

// checkout完了後にフロントが持ち込むゲートウェイの値
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/api/payments")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("/initiate", h.initiate)
	g.POST("/verify", h.verify)
	g.GET("", h.listMine)
	g.GET("/order/:orderID", h.detailByOrder)
	g.GET("/:id", h.detail)
	g.GET("/:id/transactions", h.transactions)

	admin := e.Group("/api/admin/payments")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())

	admin.POST("/:id/refund", h.refund)
}

// 金額はクライアントから受けない。注文から引く。
func (h *PaymentHandler) initiate(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON(http.StatusUnauthorized, "unauthorized"))
	}

	var req InitiatePaymentRequest
	if err := c.Bind(&req); err != nil || req.OrderID == "" {
		return c.JSON(http.StatusBadRequest, errorJSON(http.StatusBadRequest, "order_id is required"))
	}

	order, err := h.orders.GetByID(c.Request().Context(), userID, isAdminFromContext(c), req.OrderID)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.payments.Initiate(c.Request().Context(), usecase.InitiatePaymentInput{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Amount:      order.TotalAmount,
		Currency:    "INR",
		Method:      order.Payment.Method,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) verify(c echo.Context) error {
	if _, ok := getUserIDFromContext(c); !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON(http.StatusUnauthorized, "unauthorized"))
	}

	var req VerifyPaymentRequest
	if err := c.Bind(&req); err != nil || req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" {
		return c.JSON(http.StatusBadRequest, errorJSON(http.StatusBadRequest, "invalid body"))
	}

	out, err := h.payments.Verify(c.Request().Context(), usecase.VerifyPaymentInput{
		GatewayOrderID:   req.RazorpayOrderID,
		GatewayPaymentID: req.RazorpayPaymentID,
		Signature:        req.RazorpaySignature,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON(http.StatusUnauthorized, "unauthorized"))
	}

	out, err := h.payments.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if !isAdminFromContext(c) && out.UserID != userID {
		return c.JSON(http.StatusForbidden, errorJSON(http.StatusForbidden, "payment does not belong to user"))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) detailByOrder(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON(http.StatusUnauthorized, "unauthorized"))
	}

	out, err := h.payments.GetByOrderID(c.Request().Context(), c.Param("orderID"))
	if err != nil {
		return writeError(c, err)
	}
	if !isAdminFromContext(c) && out.UserID != userID {
		return c.JSON(http.StatusForbidden, errorJSON(http.StatusForbidden, "payment does not belong to user"))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) listMine(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON(http.StatusUnauthorized, "unauthorized"))
	}

	out, err := h.payments.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) transactions(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON(http.StatusUnauthorized, "unauthorized"))
	}

	p, err := h.payments.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if !isAdminFromContext(c) && p.UserID != userID {
		return c.JSON(http.StatusForbidden, errorJSON(http.StatusForbidden, "payment does not belong to user"))
	}

	out, err := h.payments.ListTransactions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) refund(c echo.Context) error {
	var req RefundRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON(http.StatusBadRequest, "invalid body"))
	}

	out, err := h.payments.Refund(c.Request().Context(), usecase.RefundInput{
		PaymentID: c.Param("id"),
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
