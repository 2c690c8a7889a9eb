package logger

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddleware_PropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	l := NewWithWriter("dev", &buf)

	r := gin.New()
	r.Use(Middleware(l))
	r.GET("/x", func(c *gin.Context) {
		From(c.Request.Context()).Info("inside")
		c.Status(204)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "rid-1")
	r.ServeHTTP(w, req)

	if w.Header().Get(HeaderRequestID) != "rid-1" {
		t.Fatalf("expected request id echoed, got %q", w.Header().Get(HeaderRequestID))
	}
	if strings.Count(buf.String(), `"request_id":"rid-1"`) != 2 {
		t.Fatalf("expected both log lines tagged with request id, got %s", buf.String())
	}
}

func TestFrom_FallsBackToDefault(t *testing.T) {
	if From(context.Background()) == nil {
		t.Fatalf("expected default logger")
	}
}
