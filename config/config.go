package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

type Config struct {
	CockroachURL      string        `ff:"long: cockroach-url, default: postgresql://root@127.0.0.1:26257/defaultdb?sslmode=disable, usage: URL for the CockroachDB database"`
	Port              uint32        `ff:"long: port, short: p, default: 4444, usage: Port for the HTTP server"`
	NATSURL           string        `ff:"long: nats-url, usage: NATS server URL for realtime notification streams (empty disables streaming)"`
	BrancaKey         string        `ff:"long: branca-key, default: supersecretkeyyoushouldnotcommit, usage: 32 byte key for auth tokens"`
	TokenLifespan     time.Duration `ff:"long: token-lifespan, default: 168h, usage: Lifespan of issued auth tokens"`
	VAPIDPublicKey    string        `ff:"long: vapid-public-key, usage: VAPID public key for web push (empty disables push)"`
	VAPIDPrivateKey   string        `ff:"long: vapid-private-key, usage: VAPID private key for web push (empty disables push)"`
	VAPIDSubscriber   string        `ff:"long: vapid-subscriber, default: mailto:ops@mesa.app, usage: Contact address reported to push services"`
	PushConcurrency   int           `ff:"long: push-concurrency, default: 8, usage: Max concurrent push sends per recipient"`
	PushTimeout       time.Duration `ff:"long: push-timeout, default: 5s, usage: Timeout for a single push send"`
	BackgroundTimeout time.Duration `ff:"long: background-timeout, default: 15s, usage: Timeout for background fan-out operations"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	fs := ff.NewFlagSetFrom("mesa", &cfg)
	err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("MESA"))
	if errors.Is(err, ff.ErrHelp) {
		fmt.Println(ffhelp.Flags(fs))
		os.Exit(0)
	}

	return cfg, err
}
