package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/plantpulse/plantpulse/internal/config"
	"github.com/plantpulse/plantpulse/pkg/types"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string              `json:"id"`
	RuleName   string              `json:"rule_name"`
	Kind       types.IndicatorKind `json:"kind"`
	MachineID  string              `json:"machine_id"`
	Line       int                 `json:"line"`
	Shift      types.Shift         `json:"shift"`
	Date       string              `json:"date"`
	Severity   string              `json:"severity"`
	Message    string              `json:"message"`
	Value      float64             `json:"value"`
	FiredAt    time.Time           `json:"fired_at"`
	ResolvedAt *time.Time          `json:"resolved_at,omitempty"`
	State      string              `json:"state"` // "firing" | "resolved"
}

// Engine evaluates alert rules against indicator rows as each run finishes
// and delivers webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: "ruleName:kind:machine:date:shift"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
}

// New creates an Engine from the alert configuration.
// An Engine with empty rules is valid - Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate tests all configured rules against the run's indicator rows.
// Alerts that fire are stored and webhook delivery is triggered
// asynchronously. Alerts that were firing but whose condition is now false
// are resolved.
func (e *Engine) Evaluate(records []types.IndicatorRecord) {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()
	if len(rules) == 0 {
		return
	}

	now := time.Now()
	for _, rule := range rules {
		for _, rec := range records {
			if rule.Kind != "" && rule.Kind != string(rec.Kind) {
				continue
			}
			key := fmt.Sprintf("%s:%s:%s:%s:%s", rule.Name, rec.Kind, rec.MachineID, rec.Date, rec.Shift)
			fires, value := evalCondition(rule.Condition, rec)

			if fires {
				e.fire(rule, rec, key, value, now)
			} else {
				e.resolve(rule, rec, key, now)
			}
		}
	}
}

func (e *Engine) fire(rule config.AlertRule, rec types.IndicatorRecord, key string, value float64, now time.Time) {
	e.mu.Lock()

	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if now.Sub(e.lastFire[key]) <= cooldown {
		e.mu.Unlock()
		return
	}

	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:        fmt.Sprintf("%s:%d", key, now.UnixNano()),
		RuleName:  rule.Name,
		Kind:      rec.Kind,
		MachineID: rec.MachineID,
		Line:      rec.Line,
		Shift:     rec.Shift,
		Date:      rec.Date,
		Severity:  sev,
		Value:     value,
		Message: fmt.Sprintf("[%s] %s fired on %s %s/%s %s: %s = %.3f",
			sev, rule.Name, rec.Kind, rec.MachineID, rec.Shift, rec.Date, rule.Condition, value),
		FiredAt: now,
		State:   "firing",
	}
	e.active[key] = a
	e.lastFire[key] = now
	alertCopy := *a
	e.mu.Unlock()

	slog.Warn("alert fired",
		"rule", rule.Name,
		"kind", rec.Kind,
		"machine", rec.MachineID,
		"value", value,
		"severity", sev,
	)
	go e.deliver(&alertCopy)
}

func (e *Engine) resolve(rule config.AlertRule, rec types.IndicatorRecord, key string, now time.Time) {
	e.mu.Lock()
	a, ok := e.active[key]
	if !ok || a.State != "firing" {
		e.mu.Unlock()
		return
	}

	resolved := now
	a.State = "resolved"
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	alertCopy := *a
	e.mu.Unlock()

	slog.Info("alert resolved",
		"rule", rule.Name,
		"kind", rec.Kind,
		"machine", rec.MachineID,
	)
	go e.deliver(&alertCopy)
}

// Reconfigure swaps the rule set and webhook targets. In-flight alert state
// (active alerts, cooldowns, history) is kept so a threshold edit does not
// re-fire everything from scratch.
func (e *Engine) Reconfigure(cfg config.AlertsConfig) {
	e.mu.Lock()
	e.rules = cfg.Rules
	e.webhooks = cfg.Webhooks
	e.mu.Unlock()
	slog.Info("alert rules reconfigured", "rules", len(cfg.Rules), "webhooks", len(cfg.Webhooks))
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := time.Now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}
