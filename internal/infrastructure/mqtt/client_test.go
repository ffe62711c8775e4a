package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-media-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graymedia-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// disconnected returns a Client that never dialled a broker.
func disconnected() *Client {
	return &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"RendererIdentified", topics.RendererIdentified(), "graymedia/event/renderer/identified"},
		{"RendererPolicy", topics.RendererPolicy(), "graymedia/state/renderer/policy"},
		{"RendererConfig", topics.RendererConfig(), "graymedia/config/renderer"},
		{"Event", topics.Event("library", "scanned"), "graymedia/event/library/scanned"},
		{"State", topics.State("library", "size"), "graymedia/state/library/size"},
		{"Config", topics.Config("library"), "graymedia/config/library"},
		{"SystemStatus", topics.SystemStatus(), "graymedia/system/status"},
		{"AllEvents", topics.AllEvents(), "graymedia/event/#"},
		{"AllConfigs", topics.AllConfigs(), "graymedia/config/+"},
		{"AllTopics", topics.AllTopics(), "graymedia/#"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "media", Password: "secret"}

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "graymedia-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "media" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("expected auto-reconnect and clean session")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil {
		t.Error("TLS config set without broker.tls")
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLSConfig = %+v, want MinVersion TLS1.2", opts.TLSConfig)
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want empty without auth", opts.Username)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "graymedia-test")

	if !opts.WillEnabled || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will = enabled:%v retained:%v qos:%d", opts.WillEnabled, opts.WillRetained, opts.WillQos)
	}
	if opts.WillTopic != "graymedia/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var status statusPayload
	if err := json.Unmarshal(opts.WillPayload, &status); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if status.Status != "offline" || status.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", status)
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantStatus string
		wantReason string
	}{
		{"online", buildOnlinePayload("media-001"), "online", ""},
		{"offline", buildOfflinePayload("media-001"), "offline", "graceful_shutdown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var status statusPayload
			if err := json.Unmarshal([]byte(tt.payload), &status); err != nil {
				t.Fatalf("payload %q is not JSON: %v", tt.payload, err)
			}
			if status.Status != tt.wantStatus || status.Reason != tt.wantReason || status.ClientID != "media-001" {
				t.Errorf("payload = %+v", status)
			}
			if _, err := time.Parse(time.RFC3339, status.Timestamp); err != nil {
				t.Errorf("timestamp %q: %v", status.Timestamp, err)
			}
			if tt.wantReason == "" && strings.Contains(tt.payload, "reason") {
				t.Errorf("online payload carries a reason: %s", tt.payload)
			}
		})
	}
}

func TestValidationBeforeConnection(t *testing.T) {
	c := disconnected()
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", []byte("x"), 1, false), ErrInvalidTopic},
		{"publish invalid qos", c.Publish("graymedia/test", nil, 3, false), ErrInvalidQoS},
		{"publish oversized", c.Publish("graymedia/test", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"publish disconnected", c.Publish("graymedia/test", []byte("x"), 1, false), ErrNotConnected},
		{"publish json unencodable", c.PublishJSON("graymedia/test", make(chan int), false), ErrPublishFailed},
		{"publish retained disconnected", c.PublishRetained("graymedia/test", []byte("x")), ErrNotConnected},
		{"subscribe empty topic", c.Subscribe("", 1, noop), ErrInvalidTopic},
		{"subscribe invalid qos", c.Subscribe("graymedia/test", 3, noop), ErrInvalidQoS},
		{"subscribe nil handler", c.Subscribe("graymedia/test", 1, nil), ErrSubscribeFailed},
		{"subscribe disconnected", c.Subscribe("graymedia/test", 1, noop), ErrNotConnected},
		{"unsubscribe empty topic", c.Unsubscribe(""), ErrInvalidTopic},
		{"unsubscribe disconnected", c.Unsubscribe("graymedia/test"), ErrNotConnected},
		{"health check", c.HealthCheck(context.Background()), ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if c.SubscriptionCount() != 0 || c.HasSubscription("graymedia/test") {
		t.Error("failed subscribe must not be tracked")
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := disconnected().HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestCloseWithoutConnection(t *testing.T) {
	if err := disconnected().Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.record(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record(msg) }

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, msg)
}

func TestWrapHandler(t *testing.T) {
	c := disconnected()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	msg := fakeMessage{topic: "graymedia/config/renderer", payload: []byte(`{}`)}

	var got string
	c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + " " + string(payload)
		return nil
	})(nil, msg)
	if got != "graymedia/config/renderer {}" {
		t.Errorf("handler saw %q", got)
	}

	c.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })(nil, msg)
	c.wrapHandler(func(string, []byte) error { panic("boom") })(nil, msg)

	want := []string{"MQTT handler returned error", "MQTT handler panic recovered"}
	if strings.Join(logger.lines, "|") != strings.Join(want, "|") {
		t.Errorf("logged %q, want %q", logger.lines, want)
	}
}

func TestWrapHandlerWithoutLogger(t *testing.T) {
	c := disconnected()
	// Must not panic with no logger installed.
	c.wrapHandler(func(string, []byte) error { panic("boom") })(nil, fakeMessage{topic: "t"})
}

func TestConnectionCallbacks(t *testing.T) {
	c := disconnected()

	var connected, lost bool
	var lostErr error
	c.SetOnConnect(func() { connected = true })
	c.SetOnDisconnect(func(err error) { lost, lostErr = true, err })

	c.handleDisconnect(errors.New("network down"))
	if !lost || lostErr == nil || lostErr.Error() != "network down" {
		t.Errorf("disconnect callback: called=%v err=%v", lost, lostErr)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
	if connected {
		t.Error("connect callback fired on disconnect")
	}
}
