package router

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openbid/adapters"
	"github.com/prebid/openbid/adapters/pubmatic"
	"github.com/prebid/openbid/config"
	"github.com/prebid/openbid/endpoints"
	"github.com/prebid/openbid/endpoints/openbid"
	"github.com/prebid/openbid/errortypes"
	"github.com/prebid/openbid/openrtb_ext"
	metricsConf "github.com/prebid/openbid/pbsmetrics/config"
	"github.com/prebid/openbid/router/aspects"
	"github.com/prebid/openbid/usersync"
	"github.com/rs/cors"
)

const schemaDirectory = "static/bidder-params"

// NewJsonDirectoryServer is used to serve .json files from a directory as a single blob. For example,
// given a directory containing the files "a.json" and "b.json", this returns a Handle which serves JSON like:
//
// {
//   "a": { ... content from the file a.json ... },
//   "b": { ... content from the file b.json ... }
// }
//
// This function stores the file contents in memory, and should not be used on large directories.
// If the root directory, or any of the files in it, cannot be read, then the program will exit.
func NewJsonDirectoryServer(schemaDirectory string, validator openrtb_ext.BidderParamValidator) httprouter.Handle {
	files, err := ioutil.ReadDir(schemaDirectory)
	if err != nil {
		glog.Fatalf("Failed to read directory %s: %v", schemaDirectory, err)
	}

	data := make(map[string]json.RawMessage, len(files))
	for _, file := range files {
		bidder := strings.TrimSuffix(file.Name(), ".json")
		bidderName, isValid := openrtb_ext.GetBidderName(bidder)
		if !isValid {
			glog.Fatalf("Schema exists for an unknown bidder: %s", bidder)
		}
		data[bidder] = json.RawMessage(validator.Schema(bidderName))
	}

	response, err := json.Marshal(data)
	if err != nil {
		glog.Fatalf("Failed to marshal bidder param JSON-schema: %v", err)
	}

	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Add("Content-Type", "application/json")
		w.Write(response)
	}
}

type NoCache struct {
	Handler http.Handler
}

func (m NoCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Add("Pragma", "no-cache")
	w.Header().Add("Expires", "0")
	m.Handler.ServeHTTP(w, r)
}

type Router struct {
	*httprouter.Router
	MetricsEngine   *metricsConf.DetailedMetricsEngine
	ParamsValidator openrtb_ext.BidderParamValidator
	Bidders         map[openrtb_ext.BidderName]adapters.Bidder
}

// New wires every bidder enabled in the config behind the openbid endpoints.
func New(cfg *config.Configuration) (r *Router, err error) {
	return newRouter(cfg, schemaDirectory)
}

func newRouter(cfg *config.Configuration, schemaDirectory string) (r *Router, err error) {
	r = &Router{
		Router: httprouter.New(),
	}

	r.Bidders, err = NewBidders(cfg)
	if err != nil {
		return nil, err
	}

	r.ParamsValidator, err = openrtb_ext.NewBidderParamsValidator(schemaDirectory)
	if err != nil {
		return nil, fmt.Errorf("Failed to create the bidder params validator. %v", err)
	}

	r.MetricsEngine = metricsConf.NewMetricsEngine(cfg, openrtb_ext.CoreBidderNames())

	httpAdapter := adapters.NewHTTPAdapter(&adapters.HTTPAdapterConfig{
		IdleConnTimeout: time.Duration(cfg.Client.IdleConnTimeout) * time.Second,
		MaxConns:        cfg.Client.MaxIdleConns,
		MaxConnsPerHost: cfg.Client.MaxIdleConnsPerHost,
	})
	syncContexts := openbid.NewSyncContextStore(cfg.SyncContext.TTL(), cfg.SyncContext.CleanupInterval())

	openbidEndpoints, err := openbid.NewEndpoints(cfg, r.Bidders, r.ParamsValidator, syncContexts, httpAdapter, r.MetricsEngine)
	if err != nil {
		return nil, fmt.Errorf("Failed to create the openbid endpoints. %v", err)
	}

	lmt := aspects.NewLimiter(cfg.RateLimit)
	auction := aspects.QueuedRequestTimeout(openbidEndpoints.Auction, cfg.RequestTimeoutHeaders)

	r.POST("/openbid/:bidder/requests", aspects.RateLimited(openbidEndpoints.BuildRequests, lmt))
	r.POST("/openbid/:bidder/bids", aspects.RateLimited(openbidEndpoints.InterpretResponse, lmt))
	r.GET("/openbid/:bidder/usersync", aspects.RateLimited(openbidEndpoints.GetUserSyncs, lmt))
	r.POST("/openbid/:bidder/auction", aspects.RateLimited(auction, lmt))
	r.GET("/bidders/params", NewJsonDirectoryServer(schemaDirectory, r.ParamsValidator))
	r.GET("/status", endpoints.NewStatusEndpoint(cfg.StatusResponse))

	return r, nil
}

// NewBidders builds one adapter per configured bidder. Disabled bidders are left out, so their
// routes answer 404.
func NewBidders(cfg *config.Configuration) (map[openrtb_ext.BidderName]adapters.Bidder, error) {
	bidders := make(map[openrtb_ext.BidderName]adapters.Bidder, len(cfg.Adapters))
	var errs []error

	for _, bidderName := range openrtb_ext.CoreBidderNames() {
		adapterCfg, ok := cfg.Adapters[string(bidderName)]
		if !ok || adapterCfg.Disabled {
			glog.Infof("Bidder %s is disabled", bidderName)
			continue
		}

		variant, ok := pubmatic.VariantFor(bidderName)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: no adapter variant is registered", bidderName))
			continue
		}
		if adapterCfg.Endpoint != "" {
			variant.Endpoint = adapterCfg.Endpoint
		}

		syncer, err := usersync.NewSyncer(string(bidderName), adapterCfg.UserSyncURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %v", bidderName, err))
			continue
		}

		bidders[bidderName] = pubmatic.NewPubmaticBidder(variant, syncer, cfg.WrapperVersion)
	}

	if len(errs) > 0 {
		return nil, errortypes.NewAggregateErrors("Failed to initialize adapters", errs)
	}
	return bidders, nil
}

// Admin serves the admin port: /version, /status and, when go-metrics is on, a JSON dump of its registry.
func Admin(cfg *config.Configuration, metrics *metricsConf.DetailedMetricsEngine, version, revision string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/version", endpoints.NewVersionEndpoint(version, revision))
	status := endpoints.NewStatusEndpoint(cfg.StatusResponse)
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		status(w, r, nil)
	})
	if metrics != nil && metrics.GoMetrics != nil {
		registry := metrics.GoMetrics.MetricsRegistry
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			dump, err := json.Marshal(registry.GetAll())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write(dump)
		})
	}
	return mux
}

// SupportCORS lets any site call the openbid endpoints from the browser.
//
// These CORS options pose a security risk... but it's a calculated one.
// The endpoints use no cookies for authorization, and each response only describes requests and
// bids which the calling page could build by itself.
func SupportCORS(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowCredentials: true,
		AllowOriginFunc: func(string) bool {
			return true
		},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}})
	return c.Handler(handler)
}
