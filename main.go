package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/spf13/viper"

	"github.com/prebid/openbid/config"
	"github.com/prebid/openbid/router"
	"github.com/prebid/openbid/server"
)

// Version and Rev identify the build. Set them at build time with:
//
//	go build -ldflags "-X main.Version=`git describe --tags` -X main.Rev=`git rev-parse --short HEAD`"
var (
	Version string
	Rev     string
)

// configFileName is looked up as pbs.yaml (or any other format viper reads) in the working
// directory and /etc/config.
const configFileName = "pbs"

func main() {
	// glog registers its flags on the default set.
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		glog.Exitf("Configuration could not be loaded or did not pass validation: %v", err)
	}

	if err := serve(Version, Rev, cfg); err != nil {
		glog.Exitf("openbid failed to start: %v", err)
	}
}

func loadConfig() (*config.Configuration, error) {
	v := viper.New()
	config.SetupViper(v, configFileName)
	return config.New(v)
}

// serve blocks until the process is told to stop.
func serve(version, revision string, cfg *config.Configuration) error {
	r, err := router.New(cfg)
	if err != nil {
		return err
	}

	handler := router.NoCache{Handler: router.SupportCORS(r)}
	admin := router.Admin(cfg, r.MetricsEngine, version, revision)
	server.Listen(cfg, handler, admin, r.MetricsEngine)
	return nil
}
