package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/cctv-bridge/driver"
	"github.com/khaledhikmat/cctv-bridge/model"
	"github.com/khaledhikmat/cctv-bridge/server"
	"github.com/khaledhikmat/cctv-bridge/service/config"
	"github.com/khaledhikmat/cctv-bridge/service/hub"
	"github.com/khaledhikmat/cctv-bridge/service/lgr"
	"github.com/khaledhikmat/cctv-bridge/service/snapshot"
	"github.com/khaledhikmat/cctv-bridge/service/store"
)

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		lgr.Logger.Info("loading env vars from .env file")
		err := godotenv.Load()
		if err != nil {
			lgr.Logger.Warn("no .env file found, relying on process env", slog.Any("error", xerrors.New(err.Error())))
		}
	}

	// Create the services needed for the integration
	// Config service
	cfgSvc := config.NewEnv()
	// Camera store service
	storeSvc := store.NewFilesStore(cfgSvc)
	// Hub registry service
	hubSvc := hub.NewInMemory()
	// Snapshot client factory
	clientFactory := func(camera model.Camera) snapshot.IService {
		return snapshot.NewHTTP(camera, cfgSvc)
	}

	drv := driver.New(canxCtx, cfgSvc, storeSvc, hubSvc, clientFactory)

	// Start the status server
	serverResult := make(chan error)
	defer close(serverResult)

	go func() {
		serverResult <- server.New(cfgSvc, drv).Start(canxCtx)
	}()

	// Initialize entities from the stored configuration. Failure is not
	// fatal: the setup flow can deliver a valid configuration later.
	if err := drv.Init(canxCtx, false); err != nil {
		lgr.Logger.Error(
			"integration initialization failed",
			lgr.Err(err),
		)
	}

	lgr.Logger.Info("driver ready and listening for connections")

	// Wait for cancellation or a server error
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"integration context cancelled",
			)
			goto resume

		case err := <-serverResult:
			if err != nil {
				lgr.Logger.Info(
					"status server exited",
					slog.Any("error", xerrors.New(err.Error())),
				)
			}
			goto resume
		}
	}

	// Wait in a non-blocking way for all the go routines to exit
resume:
	// Cancel the context if not already cancelled
	if canxCtx.Err() == nil {
		canxFn()
	}

	// Stop streaming and release camera connections before exiting
	if mediaPlayer := drv.MediaPlayer(); mediaPlayer != nil {
		mediaPlayer.Disconnect()
	}

	waitOnShutdown := time.Duration(cfgSvc.GetMaxShutdownTime()) * time.Second

	lgr.Logger.Info(
		"integration is waiting for all go routines to exit",
	)

	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			// Timer expired, proceed with shutdown
			lgr.Logger.Info(
				"integration shutdown waiting period expired. Exiting now",
				slog.Duration("period", waitOnShutdown),
			)

			return

		case err := <-serverResult:
			if err != nil {
				lgr.Logger.Info(
					"status server exited",
					slog.Any("error", xerrors.New(err.Error())),
				)
			}
		}
	}
}
