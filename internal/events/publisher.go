package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"topolens/internal/models"
)

const (
	snapshotSubjectPrefix = "topolens.snapshots."
	verifySubject         = "topolens.verify.finished"
)

// Publisher emits lifecycle events on NATS. All publishing is best-effort:
// a nil Publisher or a lost connection never fails the operation that
// produced the event.
type Publisher struct {
	nc  *nats.Conn
	url string
	log *zap.Logger
}

func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("topolens"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, url: url, log: log}, nil
}

// SnapshotEvent publishes a snapshot lifecycle event ("created",
// "completed", "failed", "deleted").
func (p *Publisher) SnapshotEvent(ctx context.Context, event string, snap *models.Snapshot) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]interface{}{
		"event":       event,
		"network":     snap.Network,
		"name":        snap.Name,
		"status":      snap.Status,
		"deviceCount": snap.DeviceCount,
		"time":        time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return p.publish(snapshotSubjectPrefix+event, payload)
}

// VerificationEvent publishes a terminal verification result.
func (p *Publisher) VerificationEvent(ctx context.Context, res *models.VerificationResult) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]interface{}{
		"event":           "verify.finished",
		"queryId":         res.QueryID,
		"queryType":       res.QueryType,
		"status":          res.Status,
		"executionTimeMs": res.ExecutionTimeMs,
		"time":            time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return p.publish(verifySubject, payload)
}

func (p *Publisher) publish(subject string, payload []byte) error {
	if p.nc == nil || p.nc.IsClosed() {
		return fmt.Errorf("nats not connected")
	}
	return p.nc.Publish(subject, payload)
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}
