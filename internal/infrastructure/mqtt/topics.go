package mqtt

import "fmt"

// Topic prefixes. Every Gray Media topic lives under TopicPrefix:
//
//	graymedia/event/{domain}/{event}    transient notifications
//	graymedia/state/{domain}/{name}     retained current state
//	graymedia/config/{domain}           inbound configuration changes
//	graymedia/system/status             retained online/offline (LWT)
const (
	TopicPrefix = "graymedia"

	TopicPrefixEvent  = TopicPrefix + "/event"
	TopicPrefixState  = TopicPrefix + "/state"
	TopicPrefixConfig = TopicPrefix + "/config"
	TopicPrefixSystem = TopicPrefix + "/system"
)

// rendererDomain is the topic segment for renderer identification.
const rendererDomain = "renderer"

// Topics provides builders for Gray Media MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.RendererIdentified() // "graymedia/event/renderer/identified"
type Topics struct{}

// Event returns the topic for an event in a domain.
//
// Example: graymedia/event/renderer/identified
func (Topics) Event(domain, event string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixEvent, domain, event)
}

// State returns the retained state topic for a named value in a domain.
//
// Example: graymedia/state/renderer/policy
func (Topics) State(domain, name string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixState, domain, name)
}

// Config returns the inbound configuration topic for a domain.
//
// Example: graymedia/config/renderer
func (Topics) Config(domain string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixConfig, domain)
}

// RendererIdentified is published when a client is identified as a
// different renderer than last time, or for the first time.
func (t Topics) RendererIdentified() string {
	return t.Event(rendererDomain, "identified")
}

// RendererPolicy carries the retained identification policy.
func (t Topics) RendererPolicy() string {
	return t.State(rendererDomain, "policy")
}

// RendererConfig receives policy updates from other services.
func (t Topics) RendererConfig() string {
	return t.Config(rendererDomain)
}

// SystemStatus returns the system status topic.
//
// Example: graymedia/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllEvents matches every event topic.
//
// Pattern: graymedia/event/#
func (Topics) AllEvents() string {
	return TopicPrefixEvent + "/#"
}

// AllConfigs matches every configuration topic.
//
// Pattern: graymedia/config/+
func (Topics) AllConfigs() string {
	return TopicPrefixConfig + "/+"
}

// AllTopics matches all Gray Media traffic.
//
// Pattern: graymedia/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
