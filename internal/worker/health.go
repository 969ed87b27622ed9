package worker

import "net/http"

// Healthz reports process liveness only; readiness lives in Readyz.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
