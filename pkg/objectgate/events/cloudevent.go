package events

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// DefaultSource is the CloudEvents source attribute of emitted events
const DefaultSource = "objectgate"

// NewCloudEvent wraps a pipeline notification in a CloudEvents envelope.
// The event type is topic + "." + event, e.g. "io.objectgate.object.objectUploaded".
func NewCloudEvent(source, topic, event string, payload any) (cloudevents.Event, error) {
	if source == "" {
		source = DefaultSource
	}
	ce := cloudevents.NewEvent()
	ce.SetID(uuid.NewString())
	ce.SetSource(source)
	ce.SetType(topic + "." + event)
	ce.SetTime(time.Now().UTC())
	if err := ce.SetData(cloudevents.ApplicationJSON, payload); err != nil {
		return cloudevents.Event{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	if err := ce.Validate(); err != nil {
		return cloudevents.Event{}, fmt.Errorf("invalid %s event: %w", event, err)
	}
	return ce, nil
}
