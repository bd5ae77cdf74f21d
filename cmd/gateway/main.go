package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RogueTeam/remit/cmd/gateway/internal/router"
	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

const ShutdownTimeout = 10 * time.Second

type flags struct {
	debug  bool
	config string
}

func parseFlags(args []string) (app flags, err error) {
	flagset := flag.NewFlagSet("gateway", flag.ContinueOnError)
	flagset.BoolVar(&app.debug, "debug", false, "set debug mode")
	flagset.StringVar(&app.config, "config", "config.yaml", "YAML configuration")
	err = flagset.Parse(args)
	return app, err
}

func main() {
	app, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if app.debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	configContents, err := os.ReadFile(app.config)
	if err != nil {
		log.Fatal(err)
	}

	var cfg Config
	err = yaml.Unmarshal(configContents, &cfg)
	if err != nil {
		log.Fatal(err)
	}
	err = cfg.Overlay()
	if err != nil {
		log.Fatal(err)
	}

	service, err := cfg.Compile()
	if err != nil {
		log.Fatal(err)
	}
	defer service.Close()
	logger := service.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := gin.New()
	e.Use(gin.Recovery())
	var r = router.Router{
		ProcessInterval: cfg.ProcessInterval,
		Gateway:         &service.Controller,
		Base:            e,
		Context:         ctx,
		Logger:          logger,
	}
	r.Register()

	server := &http.Server{Addr: cfg.ListenAddress, Handler: e}
	go func() {
		logger.WithField("address", cfg.ListenAddress).Info("listening")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	if err != nil {
		logger.WithError(err).Error("failed to shutdown server")
	}
}
