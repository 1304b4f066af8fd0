package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"
)

// echoの起動とgraceful shutdownを面倒見る
type Server struct {
	e    *echo.Echo
	addr string
}

func New(port string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "UP"})
	})

	return &Server{e: e, addr: ":" + port}
}

// ハンドラ登録用
func (s *Server) Echo() *echo.Echo {
	return s.e
}

// ctxがキャンセルされたら10秒待って落とす
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.e.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
