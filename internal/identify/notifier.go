package identify

import "sync"

// notifyQueueSize bounds pending notifications. Beyond it, notifications are
// dropped with a warning rather than stalling identification.
const notifyQueueSize = 256

type notification struct {
	topic    string
	channel  string
	payload  any
	retained bool
}

// notifier delivers MQTT and WebSocket notifications from a single
// goroutine so that a slow broker never delays Identify.
type notifier struct {
	publisher Publisher
	hub       Hub
	logger    Logger

	queue chan notification
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func newNotifier(publisher Publisher, hub Hub, logger Logger) *notifier {
	n := &notifier{
		publisher: publisher,
		hub:       hub,
		logger:    logger,
		queue:     make(chan notification, notifyQueueSize),
		done:      make(chan struct{}),
	}
	if publisher != nil || hub != nil {
		n.wg.Add(1)
		go n.run()
	}
	return n
}

func (n *notifier) enabled() bool {
	return n.publisher != nil || n.hub != nil
}

func (n *notifier) send(msg notification) {
	if !n.enabled() {
		return
	}
	select {
	case <-n.done:
		return
	default:
	}
	select {
	case n.queue <- msg:
	default:
		n.logger.Warn("notification queue full, dropping", "topic", msg.topic)
	}
}

func (n *notifier) run() {
	defer n.wg.Done()
	for {
		select {
		case msg := <-n.queue:
			n.deliver(msg)
		case <-n.done:
			for {
				select {
				case msg := <-n.queue:
					n.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (n *notifier) deliver(msg notification) {
	if n.publisher != nil && msg.topic != "" {
		if err := n.publisher.PublishJSON(msg.topic, msg.payload, msg.retained); err != nil {
			n.logger.Warn("publishing notification failed", "topic", msg.topic, "error", err)
		}
	}
	if n.hub != nil && msg.channel != "" {
		n.hub.Broadcast(msg.channel, msg.payload)
	}
}

// close stops the delivery goroutine after draining queued notifications.
func (n *notifier) close() {
	n.once.Do(func() {
		close(n.done)
		n.wg.Wait()
	})
}
