package rpcclient

import (
	"sync"

	"github.com/bramblewood/go-walletrpc/pkg/wire"
)

// EventWildcard subscribes to every command pushed by an origin service.
const EventWildcard = "*"

func eventTopic(origin, command string) string {
	return origin + ":" + command
}

// publishEvent fans an unsolicited daemon frame out to subscribers, keyed by
// the originating service and command. Delivery to a full subscriber channel
// drops the event rather than blocking the read pump.
func (c *Client) publishEvent(env *wire.Envelope) {
	c.events.TryPub(env, eventTopic(env.Origin, env.Command), eventTopic(env.Origin, EventWildcard))
}

// Subscribe registers interest in events pushed by the given origin service
// (e.g. "wallet", "full_node"). Pass EventWildcard as command to receive every
// event from that origin. The returned cancel func releases the subscription
// and closes the channel.
//
// Events carry no ordering promise relative to any in-flight request.
func (c *Client) Subscribe(origin, command string) (<-chan *wire.Envelope, func()) {
	topic := eventTopic(origin, command)
	raw := c.events.Sub(topic)
	out := make(chan *wire.Envelope, c.config.eventBuffer)

	go func() {
		defer close(out)
		for v := range raw {
			env, ok := v.(*wire.Envelope)
			if !ok {
				continue
			}
			select {
			case out <- env:
			default:
				c.config.logger.Info("walletrpc: slow event subscriber, dropping event", "topic", topic, "command", env.Command)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.closedMu.Lock()
			closed := c.isClosed
			c.closedMu.Unlock()
			if !closed {
				// Shutdown already unsubscribed everything.
				c.events.Unsub(raw, topic)
			}
		})
	}
	return out, cancel
}
