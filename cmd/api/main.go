/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/provideplatform/provenance/common"
)

const runloopSleepInterval = 250 * time.Millisecond
const runloopTickInterval = 5000 * time.Millisecond
const shutdownTimeout = 10 * time.Second

var (
	cancelF     context.CancelFunc
	closing     uint32
	shutdownCtx context.Context
	sigs        chan os.Signal

	srv *http.Server
	svc *services
)

func main() {
	common.Log.Debug("starting provenance API...")
	installSignalHandlers()

	cfg, err := common.LoadConfig()
	if err != nil {
		common.Log.Warningf("failed to load configuration; %s", err.Error())
		os.Exit(1)
	}

	svc, err = initServices(shutdownCtx, cfg)
	if err != nil {
		common.Log.Warningf("failed to initialize provenance services; %s", err.Error())
		os.Exit(1)
	}

	runAPI(cfg)

	timer := time.NewTicker(runloopTickInterval)
	defer timer.Stop()

	for !shuttingDown() {
		select {
		case <-timer.C:
			// no-op
		case sig := <-sigs:
			common.Log.Debugf("received signal: %s", sig)
			shutdown()
		case <-shutdownCtx.Done():
			close(sigs)
		default:
			time.Sleep(runloopSleepInterval)
		}
	}

	common.Log.Debug("exiting provenance API")
}

func installSignalHandlers() {
	common.Log.Debug("installing signal handlers for provenance API")
	sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	shutdownCtx, cancelF = context.WithCancel(context.Background())
}

func shutdown() {
	if atomic.AddUint32(&closing, 1) == 1 {
		common.Log.Debug("shutting down provenance API")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			common.Log.Warningf("failed to gracefully shutdown http server; %s", err.Error())
		}

		if err := svc.store.Close(); err != nil {
			common.Log.Warningf("failed to close store; %s", err.Error())
		}

		cancelF()
	}
}

func shuttingDown() bool {
	return (atomic.LoadUint32(&closing) > 0)
}

func runAPI(cfg *common.Config) {
	srv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: newRouter(svc),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.Log.Warningf("failed to serve provenance API; %s", err.Error())
			os.Exit(1)
		}
	}()

	common.Log.Debugf("listening on %s", cfg.ListenAddr)
}
