// Package notifier publishes fresh device statuses to MQTT for sibling
// services. It is a telemetry stream, not alert delivery: subscribers decide
// what to do with a CRITICAL category.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aquahub-io/aquahub/internal/synchub/core"
	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
	"github.com/aquahub-io/aquahub/pkg/log"
	"github.com/aquahub-io/aquahub/pkg/mqtt"
	"github.com/aquahub-io/aquahub/pkg/mqtt/topic"
)

// statusQoS is at-least-once; consumers must tolerate duplicates.
const statusQoS = 1

var _ core.StatusNotifier = (*MQTTNotifier)(nil)

// MQTTNotifier publishes annotated statuses to {root}/status/{deviceID}.
// Alerts additionally go to {root}/alert/{deviceID} so consumers can
// subscribe to just the actionable stream.
type MQTTNotifier struct {
	client mqtt.Client
	topics *topic.Builder
	logger log.Logger
}

// New wraps an already started MQTT client.
func New(client mqtt.Client, topicRoot string, logger log.Logger) *MQTTNotifier {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &MQTTNotifier{
		client: client,
		topics: topic.NewBuilder(topicRoot),
		logger: logger.WithName("notifier"),
	}
}

// NotifyStatus publishes one annotated status. The status goes out even while
// the broker connection is down; the paho session queues it for redelivery.
func (n *MQTTNotifier) NotifyStatus(ctx context.Context, deviceID string, st *model.AnnotatedStatus) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode status for %s: %w", deviceID, err)
	}

	if err := n.client.Publish(ctx, n.topics.Status(deviceID), statusQoS, false, payload); err != nil {
		return fmt.Errorf("publish status for %s: %w", deviceID, err)
	}

	if st.Alert != nil {
		alert, err := json.Marshal(st.Alert)
		if err != nil {
			return fmt.Errorf("encode alert for %s: %w", deviceID, err)
		}
		if err := n.client.Publish(ctx, n.topics.Alert(deviceID), statusQoS, false, alert); err != nil {
			return fmt.Errorf("publish alert for %s: %w", deviceID, err)
		}
	}

	n.logger.Debug("status published", "device", deviceID, "category", st.Category)
	return nil
}
