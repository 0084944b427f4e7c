package handler

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
)

func GzipMiddleware(next http.Handler) http.Handler {
	wrapper, _ := gzhttp.NewWrapper(
		gzhttp.MinSize(1024),
		gzhttp.CompressionLevel(6),
	)
	return wrapper(next)
}

// CORSMiddleware allows GET requests from the given origins
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         3600,
	})
	return c.Handler
}
