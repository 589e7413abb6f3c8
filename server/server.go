package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/golang/glog"
	"github.com/prebid/openbid/config"
	"github.com/prebid/openbid/pbsmetrics"
	metricsconfig "github.com/prebid/openbid/pbsmetrics/config"
)

// namedServer is one of the HTTP servers run by Listen. Connections are counted only when
// metrics is set.
type namedServer struct {
	name    string
	server  *http.Server
	metrics pbsmetrics.MetricsEngine
}

// Listen serves openbid, the admin endpoints and, when a port is configured, Prometheus. It
// blocks until SIGTERM or SIGINT, then shuts every server down gracefully.
func Listen(cfg *config.Configuration, handler http.Handler, adminHandler http.Handler, metrics *metricsconfig.DetailedMetricsEngine) {
	servers := []namedServer{
		{name: "Main", server: newMainServer(cfg, handler)},
		{name: "Admin", server: newAdminServer(cfg, adminHandler)},
	}
	if metrics != nil {
		servers[0].metrics = metrics
	}
	if cfg.Metrics.Prometheus.Port != 0 {
		if metrics == nil || metrics.PrometheusMetrics == nil {
			glog.Errorf("Prometheus port %d is configured, but no Prometheus metrics engine is running", cfg.Metrics.Prometheus.Port)
			return
		}
		servers = append(servers, namedServer{name: "Prometheus", server: newPrometheusServer(cfg, metrics.PrometheusMetrics.Registry)})
	}

	listeners := make([]net.Listener, 0, len(servers))
	for _, s := range servers {
		ln, err := newListener(s.server.Addr, s.metrics)
		if err != nil {
			glog.Errorf("%s server: %v", s.name, err)
			for _, opened := range listeners {
				opened.Close()
			}
			return
		}
		listeners = append(listeners, ln)
	}

	stopSignals := make(chan os.Signal, 1)
	signal.Notify(stopSignals, syscall.SIGTERM, syscall.SIGINT)

	// Fan the process-stopping signal out to each server.
	done := make(chan struct{})
	stoppers := make([]chan<- os.Signal, 0, len(servers))
	for i, s := range servers {
		stopper := make(chan os.Signal)
		stoppers = append(stoppers, stopper)
		go shutdownAfterSignals(s.server, stopper, done)
		go runServer(s.server, s.name, listeners[i])
	}

	wait(stopSignals, done, stoppers...)
}

func newAdminServer(cfg *config.Configuration, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.AdminPort)),
		Handler: handler,
	}
}

func newMainServer(cfg *config.Configuration, handler http.Handler) *http.Server {
	if cfg.EnableGzip {
		handler = gziphandler.GzipHandler(handler)
	}

	return &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

func runServer(server *http.Server, name string, listener net.Listener) {
	glog.Infof("%s server starting on: %s", name, server.Addr)
	if err := server.Serve(listener); err != http.ErrServerClosed {
		glog.Errorf("%s server quit with error: %v", name, err)
		return
	}
	glog.Infof("%s server stopped", name)
}

// newListener listens on address with TCP keep-alives. Connections are counted when metrics is not nil.
func newListener(address string, metrics pbsmetrics.MetricsEngine) (net.Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("Error listening for TCP connections on %s: %v", address, err)
	}

	if tcp, ok := ln.(*net.TCPListener); ok {
		ln = &tcpKeepAliveListener{tcp}
	} else {
		glog.Warningf("Listener on %s is not a TCPListener. Connections will not be kept alive.", address)
	}

	if metrics != nil {
		ln = &monitorableListener{ln, metrics}
	}
	return ln, nil
}

// wait blocks until the first inbound signal, forwards it to every outbound channel and returns
// once each of them has reported on done.
func wait(inbound <-chan os.Signal, done <-chan struct{}, outbound ...chan<- os.Signal) {
	sig := <-inbound

	for _, to := range outbound {
		go func(to chan<- os.Signal) {
			to <- sig
		}(to)
	}
	for range outbound {
		<-done
	}
}

func shutdownAfterSignals(server *http.Server, stopper <-chan os.Signal, done chan<- struct{}) {
	sig := <-stopper
	glog.Infof("Stopping %s because of signal: %s", server.Addr, sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		glog.Errorf("Failed to shutdown %s: %v", server.Addr, err)
	}
	done <- struct{}{}
}
