package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo"
	log "github.com/sirupsen/logrus"
)

// logger returns a middleware that logs HTTP requests.
func logger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			var err error
			if err = next(c); err != nil {
				c.Error(err)
			}
			stop := time.Now()

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = res.Header().Get(echo.HeaderXRequestID)
			}
			reqSize, perr := strconv.ParseInt(req.Header.Get(echo.HeaderContentLength), 10, 0)
			if perr != nil {
				reqSize = 0
			}
			errMsg := ""
			if err != nil {
				errMsg = err.Error()
			}

			entry := log.WithFields(log.Fields{
				"id":          id,
				"remote_ip":   c.RealIP(),
				"method":      req.Method,
				"uri":         req.RequestURI,
				"status":      res.Status,
				"status_text": http.StatusText(res.Status),
				"error":       errMsg,
				"bytes_in":    reqSize,
				"bytes_out":   res.Size,
				"latency":     stop.Sub(start).String(),
			})
			// Status streams and metric scrapes are noisy.
			if req.RequestURI == "/metrics" {
				entry.Debugf("%s %s %d", req.Method, req.RequestURI, res.Status)
			} else {
				entry.Infof("%s %s %d", req.Method, req.RequestURI, res.Status)
			}

			return err
		}
	}
}
