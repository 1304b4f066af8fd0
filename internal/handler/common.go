package handler

import (
	"net/http"
	"strconv"
	"time"

	"mart/internal/middleware"
	"mart/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error     string    `json:"error"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{
			Error:     he.Message,
			Status:    he.Status,
			Timestamp: time.Now(),
		})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:     "internal error",
		Status:    http.StatusInternalServerError,
		Timestamp: time.Now(),
	})
}

func errorJSON(status int, msg string) ErrorResponse {
	return ErrorResponse{Error: msg, Status: status, Timestamp: time.Now()}
}

//middleware.AuthJWT が c.Set("user_id", string) した値を取り出す

func getUserIDFromContext(c echo.Context) (string, bool) {
	v := c.Get(middleware.CtxUserIDKey)
	if v == nil {
		return "", false
	}

	id, ok := v.(string)
	if !ok || id == "" {
		return "", false
	}

	return id, true
}

func isAdminFromContext(c echo.Context) bool {
	role, ok := c.Get(middleware.CtxUserRoleKey).(string)
	return ok && role == "ADMIN"
}

// page/limitクエリ。不正値はデフォルトに落とす。
func pageParams(c echo.Context) (int, int) {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 1 {
		limit = 20
	}
	return page, limit
}
