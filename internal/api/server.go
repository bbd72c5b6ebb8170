package api

import (
	"net/http"
	"time"
)

// NewHTTPServer has no write timeout: uploads and archives stream for as long
// as the client keeps up.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
