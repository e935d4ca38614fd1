package sysprobe

import (
	"context"
	"fmt"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// DeviceChangeNotifier watches PulseAudio's subscription-event stream for
// source add/remove/change events. The Coordinator answers a source event
// that arrives while Recording with a soft restart of the session; events in
// other states are ignored.
type DeviceChangeNotifier struct {
	client *pulse.Client
}

// NewDeviceChangeNotifier opens a dedicated Pulse connection and enables
// subscription events for all facilities on it; Run passes on only source
// events.
func NewDeviceChangeNotifier() (*DeviceChangeNotifier, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("dictate"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	req := pulseproto.Subscribe{Mask: pulseproto.SubscriptionMaskAll}
	if err := client.RawRequest(&req, nil); err != nil {
		client.Close()
		return nil, fmt.Errorf("enable source subscription: %w", err)
	}

	return &DeviceChangeNotifier{client: client}, nil
}

// subscriptionFacilityMask isolates the low nibble of a PulseAudio
// subscription event, which identifies the object kind the event concerns.
const subscriptionFacilityMask = 0x0F

// Run invokes onChange once per source add/remove/change event until ctx is
// canceled.
func (n *DeviceChangeNotifier) Run(ctx context.Context, onChange func()) {
	cancel := n.client.Callback(func(val interface{}) {
		event, ok := val.(*pulseproto.SubscribeEvent)
		if !ok {
			return
		}
		if uint32(event.Event)&subscriptionFacilityMask != uint32(pulseproto.EventSource) {
			return
		}
		onChange()
	})
	defer cancel()

	<-ctx.Done()
}

// Close releases the dedicated Pulse connection.
func (n *DeviceChangeNotifier) Close() error {
	n.client.Close()
	return nil
}
