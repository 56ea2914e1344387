package mqtt

import "fmt"

// TopicPrefix is the root of every AMBEO bridge topic.
//
// The scheme is flat: ambeo/{category}/{soundbar_or_id}.
const TopicPrefix = "ambeo"

// Topics provides builders for AMBEO bridge MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.State("lounge") // "ambeo/state/lounge"
type Topics struct{}

// State returns the retained soundbar state topic.
//
// Example: ambeo/state/lounge
func (Topics) State(soundbarID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, soundbarID)
}

// Command returns the topic commands for a soundbar arrive on.
//
// Example: ambeo/command/lounge
func (Topics) Command(soundbarID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, soundbarID)
}

// Ack returns the topic command acknowledgements are published to.
//
// Example: ambeo/ack/lounge
func (Topics) Ack(soundbarID string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, soundbarID)
}

// Request returns the topic a bridge request arrives on.
//
// Example: ambeo/request/7f0c...
func (Topics) Request(requestID string) string {
	return fmt.Sprintf("%s/request/%s", TopicPrefix, requestID)
}

// Response returns the topic a request response is published to.
//
// Example: ambeo/response/7f0c...
func (Topics) Response(requestID string) string {
	return fmt.Sprintf("%s/response/%s", TopicPrefix, requestID)
}

// Health returns the retained health topic of a bridge instance.
//
// Example: ambeo/health/ambeo-bridge-01
func (Topics) Health(bridgeID string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, bridgeID)
}

// Discovery returns the retained entity list topic of a soundbar.
//
// Example: ambeo/discovery/lounge
func (Topics) Discovery(soundbarID string) string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, soundbarID)
}

// AllCommands matches commands for every soundbar.
//
// Pattern: ambeo/command/+
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// AllRequests matches every bridge request.
//
// Pattern: ambeo/request/+
func (Topics) AllRequests() string {
	return TopicPrefix + "/request/+"
}

// AllStates matches every soundbar state topic.
//
// Pattern: ambeo/state/+
func (Topics) AllStates() string {
	return TopicPrefix + "/state/+"
}

// AllTopics matches all AMBEO traffic.
//
// Pattern: ambeo/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// LastSegment returns the final level of a topic, which carries the soundbar
// or request ID in every AMBEO topic.
func LastSegment(topic string) string {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '/' {
			return topic[i+1:]
		}
	}
	return topic
}
