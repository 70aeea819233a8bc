// Package httpserver builds the process's HTTP listener. Handlers never
// stream bodies (uploads go straight to object storage via presigned URLs),
// so the timeouts can stay tight.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server with timeouts sized for small JSON exchanges.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
