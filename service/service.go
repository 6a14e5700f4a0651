package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mesahub/mesa/auth"
	"github.com/mesahub/mesa/cockroach"
	"github.com/mesahub/mesa/pubsub"
)

type Config struct {
	Cockroach *cockroach.Cockroach
	PubSub    pubsub.PubSub
	WebPush   PushSender
	Tokens    *auth.Codec
	Logger    *slog.Logger

	BaseCtx           context.Context
	BackgroundTimeout time.Duration
	PushConcurrency   int
	PushTimeout       time.Duration
}

type Service struct {
	Cockroach *cockroach.Cockroach
	PubSub    pubsub.PubSub
	WebPush   PushSender
	Tokens    *auth.Codec
	Logger    *slog.Logger

	baseCtx           context.Context
	backgroundTimeout time.Duration
	pushConcurrency   int
	pushTimeout       time.Duration
	wg                sync.WaitGroup
	errs              chan error
}

func New(cfg *Config) *Service {
	if cfg.PubSub == nil {
		cfg.PubSub = pubsub.NewInProcess()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PushConcurrency <= 0 {
		cfg.PushConcurrency = 8
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 5 * time.Second
	}

	return &Service{
		Cockroach: cfg.Cockroach,
		PubSub:    cfg.PubSub,
		WebPush:   cfg.WebPush,
		Tokens:    cfg.Tokens,
		Logger:    cfg.Logger,

		baseCtx:           cfg.BaseCtx,
		backgroundTimeout: cfg.BackgroundTimeout,
		pushConcurrency:   cfg.PushConcurrency,
		pushTimeout:       cfg.PushTimeout,
		errs:              make(chan error, 1),
	}
}

func (svc *Service) Errs() <-chan error {
	return svc.errs
}

func (svc *Service) Close() error {
	svc.wg.Wait()
	close(svc.errs)
	return nil
}

func (svc *Service) background(fn func(ctx context.Context) error) {
	svc.wg.Go(func() {
		defer func() {
			if rcv := recover(); rcv != nil {
				select {
				case svc.errs <- fmt.Errorf("service background panic: %v", rcv):
				default:
				}
			}
		}()

		ctx, cancel := context.WithTimeout(svc.baseCtx, svc.backgroundTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			select {
			case svc.errs <- fmt.Errorf("service background error: %w", err):
			default:
			}
		}
	})
}
