package core

import "net/http"

// HealthStatus is the payload returned by the health check endpoint.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HandleHealth responds to GET /health. It reports process liveness only;
// it does not touch the database, so load balancers never cascade a database
// incident into instance churn.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	service := "postroom-api"
	if s.Config != nil && s.Config.Service != "" {
		service = s.Config.Service
	}
	JSON(w, r, http.StatusOK, HealthStatus{
		Status:  "ok",
		Service: service,
	})
}
