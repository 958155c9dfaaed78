package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantfolio/risk-engine/pkg/utils/logger"
)

// PrometheusServer is a server that exposes Prometheus metrics
type PrometheusServer struct {
	server *http.Server
	log    *logger.Logger
}

// NewPrometheusServer creates a new Prometheus metrics server
func NewPrometheusServer(port int) *PrometheusServer {
	log := logger.GetLogger("metrics.prometheus")
	addr := fmt.Sprintf(":%d", port)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return &PrometheusServer{
		server: server,
		log:    log,
	}
}

// Start starts the Prometheus metrics server
func (p *PrometheusServer) Start() error {
	p.log.Infof("Starting Prometheus metrics server on %s", p.server.Addr)
	return p.server.ListenAndServe()
}

// Stop stops the Prometheus metrics server
func (p *PrometheusServer) Stop() error {
	p.log.Info("Stopping Prometheus metrics server")
	return p.server.Close()
}
