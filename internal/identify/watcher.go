package identify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-media-core/internal/infrastructure/mqtt"
)

// watcherApplyTimeout bounds the work triggered by one configuration message.
const watcherApplyTimeout = 30 * time.Second

// Subscriber is the part of the MQTT client the watcher needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// ConfigMessage is the payload accepted on graymedia/config/renderer. The
// policy fields are optional; ReloadProfiles asks for the profile sources to
// be read again.
//
//	{"force_ip": "XBMC@192.168.1.20,PlayStation 3@192.168.2.*"}
//	{"force_default": true, "default_renderer": "PlayStation 3"}
//	{"reload_profiles": true}
type ConfigMessage struct {
	PolicyUpdate
	ReloadProfiles bool `json:"reload_profiles,omitempty"`
}

// Watcher applies configuration changes received over MQTT, so other
// services can retarget renderer identification without an API token.
// Each message invalidates and rebuilds what it changes before the next
// lookup.
type Watcher struct {
	service *Service
	sub     Subscriber
	qos     byte
	topic   string
	logger  Logger
}

// NewWatcher creates a watcher feeding service from sub.
func NewWatcher(service *Service, sub Subscriber, qos byte, logger Logger) *Watcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Watcher{
		service: service,
		sub:     sub,
		qos:     qos,
		topic:   mqtt.Topics{}.RendererConfig(),
		logger:  logger,
	}
}

// Start subscribes to the configuration topic.
func (w *Watcher) Start() error {
	if err := w.sub.Subscribe(w.topic, w.qos, w.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", w.topic, err)
	}
	w.logger.Info("renderer config watcher started", "topic", w.topic)
	return nil
}

// Stop unsubscribes from the configuration topic.
func (w *Watcher) Stop() error {
	return w.sub.Unsubscribe(w.topic)
}

// handle never returns an error for bad payloads: they are logged and
// dropped so a misbehaving publisher cannot wedge the subscription.
func (w *Watcher) handle(topic string, payload []byte) error {
	msg, err := decodeConfigMessage(payload)
	if err != nil {
		w.logger.Warn("ignoring renderer config message", "topic", topic, "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), watcherApplyTimeout)
	defer cancel()

	if !msg.PolicyUpdate.IsEmpty() {
		state, err := w.service.UpdatePolicy(ctx, msg.PolicyUpdate)
		if err != nil {
			return fmt.Errorf("applying policy update: %w", err)
		}
		w.logger.Info("renderer policy updated from MQTT",
			"default", state.DefaultRenderer,
			"force_default", state.ForceDefault,
			"overrides", state.Overrides.Exact+state.Overrides.Ranges,
		)
	}

	if msg.ReloadProfiles {
		state, err := w.service.ReloadProfiles(ctx)
		if err != nil {
			return fmt.Errorf("reloading profiles: %w", err)
		}
		w.logger.Info("renderer profiles reloaded from MQTT", "profiles", state.Profiles)
	}
	return nil
}

func decodeConfigMessage(payload []byte) (ConfigMessage, error) {
	var msg ConfigMessage
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return ConfigMessage{}, fmt.Errorf("%w: %w", ErrInvalidPolicyUpdate, err)
	}
	if msg.PolicyUpdate.IsEmpty() && !msg.ReloadProfiles {
		return ConfigMessage{}, ErrEmptyPolicyUpdate
	}
	return msg, nil
}
