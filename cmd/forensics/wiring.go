package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sawpanic/forensics-shadow/internal/forensics/api"
	"github.com/sawpanic/forensics-shadow/internal/forensics/blackboard"
	"github.com/sawpanic/forensics-shadow/internal/forensics/config"
	"github.com/sawpanic/forensics-shadow/internal/forensics/metrics"
	"github.com/sawpanic/forensics-shadow/internal/forensics/orchestrator"
	"github.com/sawpanic/forensics-shadow/internal/forensics/policy"
	"github.com/sawpanic/forensics-shadow/internal/forensics/workerclient"
)

// buildService wires the blackboard, policy selector, worker client,
// and orchestrator into an api.Service, honoring CLI flags and the
// loaded file/env configuration.
func buildService() (*api.Service, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagRedisAddr != "" {
		cfg.RedisAddr = flagRedisAddr
	}
	if flagPostgresDSN != "" {
		cfg.PostgresDSN = flagPostgresDSN
	}
	if flagEnvPrefix != "" {
		cfg.EnvironmentPrefix = flagEnvPrefix
	}

	store, err := buildBackingStore(cfg)
	if err != nil {
		return nil, err
	}
	bb := blackboard.New(store, cfg.EnvironmentPrefix)

	selector := policy.NewSelector(bb, cfg.DynamicPolicyEnabled, cfg.PolicyLearningEnabled, cfg.PolicyEpsilon, cfg.PolicyLearningRate)

	var worker orchestrator.WorkerClient
	if cfg.WorkerURL != "" {
		worker = workerclient.New(cfg.WorkerURL, cfg.WorkerSharedSecret)
	}

	orch := orchestrator.New(bb, selector, worker).WithMetrics(metrics.NewRegistry(prometheus.DefaultRegisterer))
	return api.New(orch, bb), nil
}

func buildBackingStore(cfg config.Config) (blackboard.BackingStore, error) {
	if flagInMemory || (cfg.RedisAddr == "" && cfg.PostgresDSN == "") {
		return blackboard.NewMapBackingStore(), nil
	}
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return blackboard.NewPostgresBackingStore(pool), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return blackboard.NewRedisBackingStore(client), nil
}
