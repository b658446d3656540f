package httpserver

import "net/http"

// Routes defines HTTP endpoints.
type Routes struct {
	Ingest         http.Handler
	MachineHistory http.Handler
	MachineList    http.Handler
	Realtime       http.Handler
	Health         http.Handler
}

// NewRouter sets up HTTP routing.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.Ingest != nil {
		mux.Handle("/api/v1/data/ingest", method(http.MethodPost, routes.Ingest.ServeHTTP))
	}
	if routes.MachineHistory != nil {
		mux.Handle("/api/v1/data/machine/", method(http.MethodGet, routes.MachineHistory.ServeHTTP))
	}
	if routes.MachineList != nil {
		mux.Handle("/api/v1/data/machines", method(http.MethodGet, routes.MachineList.ServeHTTP))
	}
	if routes.Realtime != nil {
		mux.Handle("/ws", method(http.MethodGet, routes.Realtime.ServeHTTP))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health.ServeHTTP))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
