package handler

import (
	"io"
	"net/http"

	"mart/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ゲートウェイからの非同期コールバック。認証はHMAC署名のみ。
type WebhookHandler struct {
	uc *usecase.WebhookUsecase
}

// DI
func NewWebhookHandler(uc *usecase.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/payments/webhook", h.handle)
}

func (h *WebhookHandler) handle(c echo.Context) error {
	// 署名はボディの生バイト列に対して計算されるので、bindせずそのまま読む
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON(http.StatusBadRequest, "cannot read body"))
	}

	signature := c.Request().Header.Get("X-Razorpay-Signature")
	if err := h.uc.HandleEvent(c.Request().Context(), payload, signature); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "webhook processed"})
}
