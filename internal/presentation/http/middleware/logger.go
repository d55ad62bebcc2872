package middleware

import (
	"net/http"

	"github.com/labstack/echo"
	echomw "github.com/labstack/echo/middleware"
	"github.com/qqdog1/ws/pkg/logger"
)

// Logger returns a logger middleware
func Logger() echo.MiddlewareFunc {
	return logger.LoggingMiddleware
}

// Recover turns handler panics into 500 responses and logs the stack
func Recover() echo.MiddlewareFunc {
	return echomw.RecoverWithConfig(echomw.RecoverConfig{
		StackSize:         4 << 10,
		DisableStackAll:   true,
		DisablePrintStack: true,
	})
}

// CORS allows the operator console to call the API from a browser
func CORS() echo.MiddlewareFunc {
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	})
}
