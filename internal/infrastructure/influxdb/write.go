package influxdb

import (
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ironlatch/ironlatch-core/internal/usercode"
)

// WriteSyncRun records one synchronization run for a lock endpoint.
// The write is non-blocking; points are batched and flushed
// asynchronously.
func (c *Client) WriteSyncRun(nodeID int, stats usercode.SyncStats) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"usercode_sync",
		map[string]string{
			"node_id":  fmt.Sprintf("%d", nodeID),
			"endpoint": fmt.Sprintf("%d", stats.Endpoint),
		},
		map[string]interface{}{
			"run_id":      stats.RunID,
			"full":        stats.Full,
			"skipped":     stats.Skipped,
			"requests":    stats.Requests,
			"codes_seen":  stats.CodesSeen,
			"duration_ms": stats.Duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCodeEvent records a user-code slot transition on a lock
// endpoint. This is the audit trail for code churn: how often slots
// are enabled, disabled, or cleared over time.
func (c *Client) WriteCodeEvent(nodeID int, endpoint uint8, userID uint16, status string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"usercode_event",
		map[string]string{
			"node_id":  fmt.Sprintf("%d", nodeID),
			"endpoint": fmt.Sprintf("%d", endpoint),
			"status":   status,
		},
		map[string]interface{}{
			"user_id": int(userID),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// SyncRecorder adapts a Client to the user-code recorder contract for
// one node. A nil receiver is safe and records nothing.
type SyncRecorder struct {
	client *Client
	nodeID int
}

// NewSyncRecorder creates a recorder bound to one node.
func NewSyncRecorder(client *Client, nodeID int) *SyncRecorder {
	return &SyncRecorder{client: client, nodeID: nodeID}
}

// RecordSync writes the run's statistics.
func (r *SyncRecorder) RecordSync(stats usercode.SyncStats) {
	if r == nil || r.client == nil {
		return
	}
	r.client.WriteSyncRun(r.nodeID, stats)
}

// RecordCodeEvent writes one slot status transition.
func (r *SyncRecorder) RecordCodeEvent(endpoint uint8, userID uint16, status usercode.UserIDStatus) {
	if r == nil || r.client == nil {
		return
	}
	r.client.WriteCodeEvent(r.nodeID, endpoint, userID, status.String())
}
