// Package consul adapts the Consul KV store to castore. Consul provides
// everything natively: ModifyIndex is the modification index, check-and-set
// writes use ?cas=, and /v1/txn applies up to 64 operations atomically.
package consul

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/consul/api"

	"github.com/unkn0wn-root/castore/backend"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 8500
)

// Config selects the agent. Client, when set, overrides everything else;
// otherwise URL wins over Host/Port. With nothing set the Consul defaults
// apply, including CONSUL_HTTP_ADDR.
type Config struct {
	Host       string
	Port       int
	URL        string
	Token      string
	Datacenter string
	Client     *api.Client
}

type Consul struct {
	kv        *api.KV
	txn       *api.Txn
	transport *http.Transport // nil for a caller-supplied client
}

var _ backend.Backend = (*Consul)(nil)

func New(cfg Config) (*Consul, error) {
	if cfg.Client != nil {
		return &Consul{kv: cfg.Client.KV(), txn: cfg.Client.Txn()}, nil
	}

	ac := api.DefaultConfig()
	switch {
	case cfg.URL != "":
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("consul backend: url: %w", err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("consul backend: url %q has no host", cfg.URL)
		}
		ac.Address = u.Host
		if u.Scheme != "" {
			ac.Scheme = u.Scheme
		}
	case cfg.Host != "" || cfg.Port != 0:
		host, port := cfg.Host, cfg.Port
		if host == "" {
			host = DefaultHost
		}
		if port == 0 {
			port = DefaultPort
		}
		ac.Address = net.JoinHostPort(host, strconv.Itoa(port))
	}
	if cfg.Token != "" {
		ac.Token = cfg.Token
	}
	if cfg.Datacenter != "" {
		ac.Datacenter = cfg.Datacenter
	}

	client, err := api.NewClient(ac)
	if err != nil {
		return nil, fmt.Errorf("consul backend: %w", err)
	}
	return &Consul{kv: client.KV(), txn: client.Txn(), transport: ac.Transport}, nil
}

func (c *Consul) Name() string { return "consul" }

func (c *Consul) Get(ctx context.Context, key string) (*backend.Entry, error) {
	pair, _, err := c.kv.Get(key, query(ctx))
	if err != nil {
		return nil, convert(err)
	}
	if pair == nil {
		return nil, nil
	}
	return &backend.Entry{Key: pair.Key, Value: pair.Value, ModIndex: pair.ModifyIndex}, nil
}

func (c *Consul) List(ctx context.Context, prefix string) ([]backend.Entry, error) {
	pairs, _, err := c.kv.List(prefix, query(ctx))
	if err != nil {
		return nil, convert(err)
	}
	out := make([]backend.Entry, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, backend.Entry{Key: p.Key, Value: p.Value, ModIndex: p.ModifyIndex})
	}
	return out, nil
}

func (c *Consul) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, _, err := c.kv.Keys(prefix, "", query(ctx))
	if err != nil {
		return nil, convert(err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func (c *Consul) CAS(ctx context.Context, key string, value []byte, modIndex uint64) (bool, error) {
	ok, _, err := c.kv.CAS(&api.KVPair{Key: key, Value: value, ModifyIndex: modIndex}, write(ctx))
	if err != nil {
		return false, convert(err)
	}
	return ok, nil
}

func (c *Consul) Txn(ctx context.Context, ops []backend.Op) error {
	if err := backend.CheckOps(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	txn := make(api.TxnOps, 0, len(ops))
	for _, op := range ops {
		kv := &api.KVTxnOp{Key: op.Key}
		switch op.Verb {
		case backend.VerbSet:
			kv.Verb = api.KVSet
			kv.Value = op.Value
		case backend.VerbDelete:
			kv.Verb = api.KVDelete
		}
		txn = append(txn, &api.TxnOp{KV: kv})
	}
	ok, resp, _, err := c.txn.Txn(txn, query(ctx))
	if err != nil {
		return convert(err)
	}
	if !ok {
		te := &backend.TxnError{Reasons: make(map[int]string)}
		if resp != nil {
			for _, e := range resp.Errors {
				te.Reasons[e.OpIndex] = e.What
			}
		}
		return te
	}
	return nil
}

// Close drops idle connections of a client this backend built itself.
// A caller-supplied client is left alone.
func (c *Consul) Close(context.Context) error {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

func query(ctx context.Context) *api.QueryOptions { return (&api.QueryOptions{}).WithContext(ctx) }
func write(ctx context.Context) *api.WriteOptions { return (&api.WriteOptions{}).WithContext(ctx) }

// convert exposes Consul's HTTP status so callers can inspect codes.
func convert(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		return fmt.Errorf("consul: %w", &backend.StatusError{Code: se.Code, Body: se.Body})
	}
	return fmt.Errorf("consul: %w", err)
}
