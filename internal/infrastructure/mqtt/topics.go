package mqtt

import "fmt"

// DefaultTopicPrefix is used when gateway.topic_prefix is left empty.
const DefaultTopicPrefix = "ironlatch"

// Topics builds topic names under a configured prefix. The gateway
// bridges MQTT to the entry-control device network; each node exposes
// endpoints, with commands flowing to a per-endpoint command topic and
// reports coming back on the matching report topic:
//
//	{prefix}/node/{nodeID}/endpoint/{endpoint}/command
//	{prefix}/node/{nodeID}/endpoint/{endpoint}/report
//
// Construct with NewTopics so every component shares the same root.
type Topics struct {
	prefix string
}

// NewTopics returns topic builders rooted at prefix, falling back to
// DefaultTopicPrefix when prefix is empty.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the configured topic tree root.
func (t Topics) Prefix() string {
	return t.prefix
}

// NodeCommand returns the topic for command frames to a node endpoint.
func (t Topics) NodeCommand(nodeID, endpoint int) string {
	return fmt.Sprintf("%s/node/%d/endpoint/%d/command", t.prefix, nodeID, endpoint)
}

// NodeReport returns the topic for report frames from a node endpoint.
func (t Topics) NodeReport(nodeID, endpoint int) string {
	return fmt.Sprintf("%s/node/%d/endpoint/%d/report", t.prefix, nodeID, endpoint)
}

// SystemStatus returns the topic carrying this service's online and
// offline announcements, including the broker-published last will.
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix)
}
