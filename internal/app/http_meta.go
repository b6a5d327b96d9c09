package app

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (s *HTTPServer) handleReady(c *gin.Context) {
	ready, checks := s.service.Ready(c.Request.Context())
	status, statusCode := "ready", http.StatusOK
	if !ready {
		status, statusCode = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(c, statusCode, gin.H{
		"ok":     ready,
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleVersion(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	writeJSON(c, http.StatusOK, s.service.Version())
}

// handleDebug answers 404 unless debug endpoints are enabled or the caller
// holds the admin key, so the route is not discoverable in production.
func (s *HTTPServer) handleDebug(c *gin.Context) {
	if !s.service.DebugAllowed(c.GetHeader("X-Admin-Key")) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	writeJSON(c, http.StatusOK, s.service.Debug(c.Request.Context()))
}

var cacheBusterPage = template.Must(template.New("cache-buster").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5;url={{.Target}}">
<title>Refreshing ChatFlow</title>
<style>body{font-family:system-ui,sans-serif;margin:4rem auto;max-width:32rem;color:#1f2937;text-align:center}</style>
</head>
<body>
<h1>Refreshing ChatFlow</h1>
<p id="status">Clearing cached files and reloading the latest version.</p>
<p><a href="{{.Target}}">Continue to ChatFlow</a></p>
<script>
(async function () {
  var target = {{.Target}};
  try {
    if ("serviceWorker" in navigator) {
      var registrations = await navigator.serviceWorker.getRegistrations();
      await Promise.all(registrations.map(function (r) { return r.unregister(); }));
    }
  } catch (e) {}
  try {
    if (window.caches) {
      var keys = await caches.keys();
      await Promise.all(keys.map(function (k) { return caches.delete(k); }));
    }
  } catch (e) {}
  try { window.localStorage.clear(); } catch (e) {}
  try { window.sessionStorage.clear(); } catch (e) {}
  window.location.replace(target);
})();
</script>
</body>
</html>
`))

// handleCacheBuster serves a page that wipes every client-side cache the
// browser keeps for the origin, then sends the user to a fresh bundle.
func (s *HTTPServer) handleCacheBuster(c *gin.Context) {
	var buf bytes.Buffer
	target := s.service.Config().CacheBustURLAt(s.service.now())
	if err := cacheBusterPage.Execute(&buf, struct{ Target string }{target}); err != nil {
		s.fail(c, err)
		return
	}

	header := c.Writer.Header()
	header.Set("Clear-Site-Data", `"cache", "cookies", "storage"`)
	header.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	header.Set("Pragma", "no-cache")
	header.Set("Expires", "0")
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
