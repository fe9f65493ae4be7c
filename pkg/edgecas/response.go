package edgecas

import (
	"fmt"
	"net/http"
	"time"

	"github.com/agenthands/edgecas/pkg/edge"
	"github.com/agenthands/edgecas/pkg/record"
)

// buildResponse is the single place that shapes a positive response. Both
// retrieval and cache warming after ingest use it, so a warmed entry is
// byte-identical to what a cold read would have produced.
func buildResponse(id Identifier, body []byte, maxAge time.Duration) *edge.Response {
	h := http.Header{}
	h.Set("Content-Type", record.MediaTypeJSON)
	h.Set("Cache-Control", cacheControl(maxAge))
	h.Set("ETag", `"`+string(id)+`"`)
	return &edge.Response{
		Status: http.StatusOK,
		Header: h,
		Body:   body,
	}
}

func notFoundResponse(maxAge time.Duration) *edge.Response {
	h := http.Header{}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", cacheControl(maxAge))
	return &edge.Response{
		Status: http.StatusNotFound,
		Header: h,
		Body:   []byte("Not found"),
	}
}

func cacheControl(maxAge time.Duration) string {
	return fmt.Sprintf("public, max-age=%d", int64(maxAge/time.Second))
}
