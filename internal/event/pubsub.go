package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PushEnvelope is the body a Pub/Sub push subscription POSTs to an endpoint.
//
// Source: https://cloud.google.com/pubsub/docs/payload-unwrapping#wrapped-message
type PushEnvelope struct {
	Message      PubSubMessage `json:"message"`
	Subscription string        `json:"subscription"`
}

// PubSubMessage is the message body in the PushEnvelope. Data is
// base64-encoded on the wire; encoding/json decodes it into raw bytes.
type PubSubMessage struct {
	Data        []byte            `json:"data"`
	MessageID   string            `json:"messageId"`
	PublishTime string            `json:"publishTime"`
	Attributes  map[string]string `json:"attributes"`
}

var errNoData = errors.New("message has no data")

// ParsePush decodes a push delivery body and returns the envelope.
// The message data must be present; its content is not inspected here.
func ParsePush(body []byte) (*PushEnvelope, error) {
	var env PushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parsing push envelope: %w", err)
	}
	if len(env.Message.Data) == 0 {
		return nil, errNoData
	}
	return &env, nil
}
