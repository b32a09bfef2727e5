package main

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	bk "github.com/unkn0wn-root/castore/backend"
	"github.com/unkn0wn-root/castore/backend/bolt"
	"github.com/unkn0wn-root/castore/backend/consul"
	"github.com/unkn0wn-root/castore/backend/redis"
	"github.com/unkn0wn-root/castore/internal/config"
)

func newBackend(cfg *config.Config) (bk.Backend, error) {
	switch cfg.Backend {
	case "consul":
		return consul.New(consul.Config{
			Host:       cfg.Consul.Host,
			Port:       cfg.Consul.Port,
			URL:        cfg.Consul.URL,
			Token:      cfg.Consul.Token,
			Datacenter: cfg.Consul.Datacenter,
		})
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redis.New(redis.Config{
			Client:      client,
			Namespace:   cfg.Redis.Namespace,
			CloseClient: true,
		})
	case "bolt":
		return bolt.Open(bolt.Config{
			Path:   cfg.Bolt.Path,
			Bucket: cfg.Bolt.Bucket,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
