package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pushSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mesa",
		Name:      "push_sends_total",
		Help:      "Push send attempts by outcome.",
	}, []string{"outcome"})

	notificationFanoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mesa",
		Name:      "notification_fanouts_total",
		Help:      "Message fan-out runs.",
	})
)

const (
	pushOutcomeSent   = "sent"
	pushOutcomeFailed = "failed"
	pushOutcomeGone   = "gone"
)
