package spotmicro

import (
	"go.uber.org/zap"
)

// GattLink is the hardware boundary for a single BLE central connection.
// No BLE/GATT library exists anywhere in the retrieval corpus (see
// DESIGN.md), so the adapter is expressed against this narrow interface
// rather than a fabricated dependency: a platform-specific GATT server
// (tinygo-org/bluetooth on an embedded target, or a BlueZ binding on
// Linux) implements it and hands characteristic writes to the adapter's
// Receive method.
type GattLink interface {
	// Write sends b as a single GATT notification on the characteristic
	// this link represents.
	Write(b []byte) error
	// Close drops the BLE connection.
	Close() error
}

// BLEAdapter serves the event bus over a GattLink using the compact
// binary codec, since BLE's default ATT MTU leaves little room for JSON.
// It mirrors WSAdapter's shape but has no accept loop of its own: the
// platform-specific GATT server owns discovery/pairing and calls Connect/
// Receive as central-write events arrive.
type BLEAdapter struct {
	*CommAdapter
	logger *zap.SugaredLogger
}

// NewBLEAdapter builds a BLE adapter using the binary codec.
func NewBLEAdapter(bus *EventBus, logger *zap.SugaredLogger) *BLEAdapter {
	return &BLEAdapter{
		CommAdapter: NewCommAdapter(bus, NewBinaryCodec(), logger),
		logger:      logger,
	}
}

// Connect registers a newly paired central and returns its client id, or
// noClient if the adapter has no free slot.
func (a *BLEAdapter) Connect(link GattLink) ClientID {
	id := a.connect(&bleSink{link: link})
	if id == noClient {
		a.logger.Warnw("ble client rejected, adapter at capacity")
	}
	return id
}

// Disconnect releases id's slot and closes its link.
func (a *BLEAdapter) Disconnect(id ClientID) { a.disconnect(id) }

// Receive decodes one characteristic write from id and dispatches it,
// called by the platform GATT server's write-event callback.
func (a *BLEAdapter) Receive(id ClientID, data []byte) {
	frame, err := a.codec.Decode(data)
	if err != nil {
		a.logger.Debugw("ble decode failed", "client", id, "error", err)
		return
	}
	a.handleFrame(id, frame)
}

type bleSink struct {
	link GattLink
}

func (s *bleSink) send(b []byte) error { return s.link.Write(b) }
func (s *bleSink) close() error        { return s.link.Close() }
