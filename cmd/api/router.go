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
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/provideplatform/provenance/chain"
	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/fraud"
	"github.com/provideplatform/provenance/metrics"
	"github.com/provideplatform/provenance/proof"
	"github.com/provideplatform/provenance/region"
	"github.com/provideplatform/provenance/store"
	"github.com/provideplatform/provenance/store/providers"
	"github.com/provideplatform/provenance/streaming"
	"github.com/provideplatform/provenance/temporal"
	"github.com/provideplatform/provenance/tlog"
	zkproviders "github.com/provideplatform/provenance/zkp/providers"
	provide "github.com/provideplatform/provide-go/common"
)

// services holds the wired provenance services backing the api
type services struct {
	store providers.Store

	registry  *commitment.Registry
	proofs    *proof.Service
	chains    *chain.Manager
	regions   *region.Service
	checker   *fraud.Checker
	engine    *temporal.Engine
	sessions  *streaming.Manager
	log       *tlog.Log
	consumers sync.WaitGroup
}

func initServices(ctx context.Context, cfg *common.Config) (*services, error) {
	s, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	registry, err := commitment.NewRegistry(ctx, s, cfg)
	if err != nil {
		return nil, err
	}

	var zk zkproviders.ZKSnarkProvider
	switch strings.ToLower(cfg.ZKPProvider) {
	case "":
	case zkproviders.ZKSnarkProviderGnark:
		zk, err = zkproviders.InitGnarkProvider(common.StringOrNil(cfg.ZKPCurve), common.StringOrNil(cfg.ZKPProvingScheme), s)
		if err != nil {
			return nil, err
		}
		common.Log.Debugf("initialized gnark zk_snark provider; curve: %s", cfg.ZKPCurve)
	default:
		return nil, fmt.Errorf("unsupported zkp provider: %s", cfg.ZKPProvider)
	}

	genOpts := []proof.GeneratorOption{proof.WithHashAlgorithm(cfg.HashAlgorithm)}
	if zk != nil {
		genOpts = append(genOpts, proof.WithZKSnarkProvider(zk))
	}
	verifier := proof.NewVerifier(zk)

	notifier := common.NewNotifier(cfg)
	engine := temporal.NewEngine(s, cfg)

	keys, err := tlog.LoadOrCreateSigner(cfg.SigningKeyPath, cfg.SigningKeyName, cfg.SigningKeyAgeIdentity)
	if err != nil {
		return nil, err
	}
	log, err := tlog.NewLog(ctx, s, keys, cfg.LogOrigin, tlog.WithNotifier(notifier))
	if err != nil {
		return nil, err
	}

	svc := &services{
		store:    s,
		registry: registry,
		proofs:   proof.NewService(s, registry, proof.NewGenerator(cfg.TileSize, genOpts...), verifier),
		chains:   chain.NewManager(s, verifier),
		regions:  region.NewService(s, registry),
		checker:  fraud.NewChecker(),
		engine:   engine,
		sessions: streaming.NewManager(engine, notifier, cfg),
		log:      log,
	}

	if cfg.ConsumeNotifications {
		tlog.RequireConsumer(log, &svc.consumers)
	}

	return svc, nil
}

func newRouter(svc *services) *gin.Engine {
	r := gin.Default()

	r.GET("/status", statusHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	commitment.InstallAPI(r, svc.registry)
	proof.InstallAPI(r, svc.proofs)
	chain.InstallAPI(r, svc.chains, svc.registry, svc.proofs)
	region.InstallAPI(r, svc.regions)
	fraud.InstallAPI(r, svc.checker)
	temporal.InstallAPI(r, svc.engine)
	streaming.InstallAPI(r, svc.sessions)
	tlog.InstallAPI(r, svc.log)

	return r
}

func statusHandler(c *gin.Context) {
	provide.Render(nil, 204, c)
}

func init() {
	metrics.RegisterRuntimeCollectors()
}
