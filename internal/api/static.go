package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// staticHandler serves dir verbatim for any unmatched path; "/" resolves to index.html.
func staticHandler(dir string) gin.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusMethodNotAllowed, errorResponse{Detail: "Method Not Allowed"})
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}
