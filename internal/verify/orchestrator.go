package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"topolens/internal/config"
	"topolens/internal/engine"
	"topolens/internal/events"
	"topolens/internal/metrics"
	"topolens/internal/models"
	"topolens/internal/registry"
)

// ErrInvalidQueryType rejects query types outside the closed set.
var ErrInvalidQueryType = errors.New("invalid query type")

// Orchestrator executes verification queries against the engine with
// bounded concurrency, a per-query timeout, and transient-failure retry.
// The result envelope is the error channel: once a query is admitted, Run
// always returns a terminal VerificationResult.
type Orchestrator struct {
	gateway   engine.Gateway
	registry  *registry.Registry
	publisher *events.Publisher
	log       *zap.Logger

	timeout        time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	// bounds concurrent in-flight engine calls; the engine is the true
	// bottleneck and is treated as a rate-limited external resource
	sem chan struct{}
}

func New(gateway engine.Gateway, reg *registry.Registry, publisher *events.Publisher, cfg config.VerifyConfig, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		gateway:        gateway,
		registry:       reg,
		publisher:      publisher,
		log:            log,
		timeout:        cfg.Timeout(),
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff(),
		sem:            make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Run executes one verification query against a COMPLETE snapshot.
// Pre-dispatch failures (unknown query type, snapshot missing or not
// ready) return an error; everything after envelope allocation resolves
// into the envelope itself.
func (o *Orchestrator) Run(ctx context.Context, network, snapshot string, queryType models.QueryType, params map[string]string) (*models.VerificationResult, error) {
	if !queryType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQueryType, queryType)
	}
	if _, err := o.registry.RequireComplete(ctx, network, snapshot); err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]string{}
	}

	result := &models.VerificationResult{
		QueryID:    uuid.NewString(),
		QueryType:  queryType,
		Status:     models.QueryInProgress,
		Parameters: params,
		ExecutedAt: time.Now().UTC(),
	}
	start := time.Now()

	// The timeout covers the wait for an engine slot too: a query stuck
	// behind a saturated engine times out like a slow query would.
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	select {
	case o.sem <- struct{}{}:
	case <-callCtx.Done():
		if ctx.Err() == nil {
			return o.finish(result, start, models.QueryTimeout, nil,
				fmt.Sprintf("query exceeded %s timeout", o.timeout)), nil
		}
		return o.finish(result, start, models.QueryFailed, nil, ctx.Err().Error()), nil
	}
	defer func() { <-o.sem }()
	metrics.EngineCallsInFlight.Inc()
	defer metrics.EngineCallsInFlight.Dec()

	rows, err := o.dispatch(callCtx, network, snapshot, queryType, params)
	if err != nil {
		// A timed-out query is not retried: a slow query retried blindly
		// risks resource exhaustion on the engine.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return o.finish(result, start, models.QueryTimeout, nil,
				fmt.Sprintf("query exceeded %s timeout", o.timeout)), nil
		}
		return o.finish(result, start, models.QueryFailed, nil, err.Error()), nil
	}

	normalized, err := normalize(queryType, rows)
	if err != nil {
		return o.finish(result, start, models.QueryFailed, nil,
			"normalize engine response: "+err.Error()), nil
	}
	return o.finish(result, start, models.QuerySuccess, &normalized, ""), nil
}

// dispatch runs the engine call, retrying transient connectivity failures
// with exponential backoff up to the configured attempt bound.
func (o *Orchestrator) dispatch(ctx context.Context, network, snapshot string, queryType models.QueryType, params map[string]string) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	attempt := 0
	op := func() error {
		attempt++
		var err error
		rows, err = o.gateway.RunVerification(ctx, network, snapshot, queryType, params)
		if err == nil {
			return nil
		}
		if errors.Is(err, engine.ErrEngineUnavailable) {
			o.log.Warn("engine unavailable, will retry",
				zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.initialBackoff
	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(o.maxAttempts-1)), ctx))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// finish seals the envelope with a terminal status and reports it.
func (o *Orchestrator) finish(result *models.VerificationResult, start time.Time, status models.QueryStatus, results *models.VerificationResults, errMsg string) *models.VerificationResult {
	result.Status = status
	result.ErrorMessage = errMsg
	if results != nil {
		result.Results = *results
	}
	elapsed := time.Since(start)
	result.ExecutionTimeMs = elapsed.Milliseconds()

	metrics.VerificationQueries.WithLabelValues(string(result.QueryType), string(status)).Inc()
	metrics.VerificationSeconds.Observe(elapsed.Seconds())
	if err := o.publisher.VerificationEvent(context.Background(), result); err != nil {
		o.log.Warn("publish verification event failed",
			zap.String("queryId", result.QueryID), zap.Error(err))
	}

	log := o.log.With(
		zap.String("queryId", result.QueryID),
		zap.String("queryType", string(result.QueryType)),
		zap.Int64("executionTimeMs", result.ExecutionTimeMs))
	if status == models.QuerySuccess {
		log.Info("verification query finished")
	} else {
		log.Warn("verification query did not succeed",
			zap.String("status", string(status)), zap.String("error", errMsg))
	}
	return result
}
