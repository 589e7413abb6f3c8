package server

import (
	"net"
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prebid/openbid/config"
)

// newPrometheusServer exposes the engine's registry for scraping on its own port.
func newPrometheusServer(cfg *config.Configuration, gatherer prometheus.Gatherer) *http.Server {
	return &http.Server{
		Addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Metrics.Prometheus.Port)),
		Handler: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			ErrorLog:            promErrorLog{},
			MaxRequestsInFlight: 5,
			Timeout:             cfg.Metrics.Prometheus.Timeout(),
		}),
	}
}

// promErrorLog routes promhttp's scrape errors into glog.
type promErrorLog struct{}

func (promErrorLog) Println(v ...interface{}) {
	glog.Warningln(v...)
}
