package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server. readTimeout bounds receiving the whole request
// body, multipart uploads included. WriteTimeout covers the read plus two
// uploads and their normalization.
func New(addr string, handler http.Handler, readTimeout, uploadTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      readTimeout + 2*uploadTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
