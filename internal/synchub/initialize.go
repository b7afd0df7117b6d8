package synchub

import (
	"fmt"
	"os"

	"github.com/aquahub-io/aquahub/pkg/log"
	"github.com/aquahub-io/aquahub/pkg/mqtt"
	"github.com/aquahub-io/aquahub/pkg/options"
)

func InitializeMQTTClient(opts *options.MqttOptions) (mqtt.Client, error) {
	cfg := opts.ToClientConfig()

	if cfg.ClientID == "" {
		hostname, _ := os.Hostname()
		cfg.ClientID = fmt.Sprintf("aquahub-syncd-%s", hostname)
	}

	mqttclient, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}

	return mqttclient, nil
}
