package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const carteSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 320 200"><rect width="320" height="200" rx="14" fill="#008854"/><rect x="24" y="56" width="48" height="36" rx="6" fill="#d4af37"/><text x="24" y="130" font-family="Arial" font-size="18" fill="#fff" letter-spacing="2">•••• •••• •••• ••••</text><text x="24" y="170" font-family="Arial" font-size="12" fill="#cfe8dd">CARTE BANCAIRE</text></svg>`

// StaticFileServer serves card artwork, falling back to a generic
// placeholder when the requested asset does not exist.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(carteSVG))
	})
}
