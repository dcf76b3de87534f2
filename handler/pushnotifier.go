// Package handler implements RequestHandler, the orchestration layer
// that wires QueueManager, TaskStore, ResultAggregator, and the
// user-supplied AgentExecutor into the nine operations of the
// JSON-RPC method table, plus PushNotifier, which delivers terminal
// task state to configured webhooks.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gate4ai/a2a"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/cenkalti/backoff.v1"
)

// PushNotifier owns the per-task push notification configuration and
// delivers the final Task JSON to each configured URL on terminal
// state. It is grounded on the mutex-guarded-map idiom the teacher uses
// throughout shared/requestManager.go and server/a2a/capability.go,
// generalized to keep (taskId, configId) pairs rather than a single
// value per key.
type PushNotifier struct {
	mu      sync.RWMutex
	configs map[string]map[string]a2a.PushNotificationConfig // taskID -> configID -> config

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewPushNotifier returns a PushNotifier throttled to ratePerSecond
// outbound deliveries (burst of int(ratePerSecond)+1). A ratePerSecond
// of 0 disables throttling.
func NewPushNotifier(logger *zap.Logger, ratePerSecond float64) *PushNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond)+1)
	}
	return &PushNotifier{
		configs:    make(map[string]map[string]a2a.PushNotificationConfig),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    limiter,
		logger:     logger,
	}
}

// Set registers or replaces a push notification config for a task,
// defaulting ConfigID to taskID when empty so a caller registering a
// single, unnamed config gets a stable key to address it by with
// Get/Delete's own empty-configID default.
func (p *PushNotifier) Set(taskID string, cfg a2a.PushNotificationConfig) a2a.TaskPushNotificationConfig {
	if cfg.ConfigID == "" {
		cfg.ConfigID = taskID
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.configs[taskID] == nil {
		p.configs[taskID] = make(map[string]a2a.PushNotificationConfig)
	}
	p.configs[taskID][cfg.ConfigID] = cfg
	return a2a.TaskPushNotificationConfig{TaskID: taskID, PushNotificationConfig: cfg}
}

// Get returns the config for (taskID, configID). An empty configID
// defaults to taskID, matching Set's default.
func (p *PushNotifier) Get(taskID, configID string) (a2a.PushNotificationConfig, bool) {
	if configID == "" {
		configID = taskID
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	cfg, ok := p.configs[taskID][configID]
	return cfg, ok
}

// List returns every config registered for taskID.
func (p *PushNotifier) List(taskID string) []a2a.TaskPushNotificationConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]a2a.TaskPushNotificationConfig, 0, len(p.configs[taskID]))
	for _, cfg := range p.configs[taskID] {
		out = append(out, a2a.TaskPushNotificationConfig{TaskID: taskID, PushNotificationConfig: cfg})
	}
	return out
}

// Delete removes a single config, or every config for taskID when
// configID is empty.
func (p *PushNotifier) Delete(taskID, configID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if configID == "" {
		delete(p.configs, taskID)
		return
	}
	delete(p.configs[taskID], configID)
}

// Notify delivers task to every config registered for task.ID. Each
// delivery is retried with exponential backoff up to a fixed elapsed
// budget; failures are logged and otherwise swallowed, matching §6's
// "failures are logged; no retry is specified in the core" baseline
// plus the retry this library adds on top of it.
func (p *PushNotifier) Notify(ctx context.Context, task *a2a.Task) {
	p.mu.RLock()
	configs := make([]a2a.PushNotificationConfig, 0, len(p.configs[task.ID]))
	for _, cfg := range p.configs[task.ID] {
		configs = append(configs, cfg)
	}
	p.mu.RUnlock()

	for _, cfg := range configs {
		cfg := cfg
		go p.deliver(ctx, cfg, task)
	}
}

func (p *PushNotifier) deliver(ctx context.Context, cfg a2a.PushNotificationConfig, task *a2a.Task) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
	}

	body, err := json.Marshal(task)
	if err != nil {
		p.logger.Error("marshal task for push notification", zap.Error(err))
		return
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if cfg.Token != "" {
			req.Header.Set("X-A2A-Notification-Token", cfg.Token)
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("push notifier: %s returned %d", cfg.URL, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("push notifier: %s returned %d", cfg.URL, resp.StatusCode))
		}
		return nil
	}

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(op, retryPolicy); err != nil {
		p.logger.Warn("push notification delivery failed", zap.String("taskId", task.ID), zap.String("url", cfg.URL), zap.Error(err))
	}
}
