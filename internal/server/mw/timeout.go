package mw

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const CtxTimeout = "handler_timeout"

// Deadline stores the time budget handlers give their store calls.
// Multipart bodies carry files bound for the blob store and get upload.
func Deadline(def, upload time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := def
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			d = upload
		}
		c.Set(CtxTimeout, d)
		c.Next()
	}
}
