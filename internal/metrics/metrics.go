// Package metrics exposes counters for the authentication and onboarding
// actions. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Action outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Auth actions
const (
	ActionLogin        = "login"
	ActionSignup       = "signup"
	ActionSignout      = "signout"
	ActionGoogle       = "google"
	ActionCallback     = "callback"
	ActionConfirmEmail = "confirm_email"
)

// Onboarding actions
const (
	ActionCreateCompany = "create_company"
	ActionJoinCompany   = "join_company"
)

// Config carries the constant labels attached to every series.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics holds the application counters.
type Metrics struct {
	authActions       *prometheus.CounterVec
	onboardingActions *prometheus.CounterVec
	failOpen          prometheus.Counter
}

// New creates the counters and registers them on registerer.
func New(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "tenant-onboarding"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	authActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "auth_actions_total",
		Help:        "Authentication actions by outcome.",
		ConstLabels: constLabels,
	}, []string{"action", "outcome"})
	onboardingActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "onboarding_actions_total",
		Help:        "Company onboarding actions by outcome.",
		ConstLabels: constLabels,
	}, []string{"action", "outcome"})
	failOpen := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "onboarding_fail_open_total",
		Help:        "Post-login redirects sent to onboarding because the onboarding flag could not be read.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(authActions, onboardingActions, failOpen)

	return &Metrics{
		authActions:       authActions,
		onboardingActions: onboardingActions,
		failOpen:          failOpen,
	}
}

// AuthAction counts one authentication action.
func (m *Metrics) AuthAction(action, outcome string) {
	if m == nil {
		return
	}
	m.authActions.WithLabelValues(action, outcome).Inc()
}

// OnboardingAction counts one create/join company action.
func (m *Metrics) OnboardingAction(action, outcome string) {
	if m == nil {
		return
	}
	m.onboardingActions.WithLabelValues(action, outcome).Inc()
}

// FailOpen counts a redirect to onboarding taken because the lookup failed.
func (m *Metrics) FailOpen() {
	if m == nil {
		return
	}
	m.failOpen.Inc()
}
