package ir

import (
	"encoding/json"
	"fmt"
)

// BridgeKind selects the adaptation synthesized at a policy boundary.
type BridgeKind uint8

const (
	// ViewBridge exposes a borrowed value to GC code as a read-only view
	// bounded by the call.
	ViewBridge BridgeKind = iota
	// CopyBridge copies an owned value across the boundary.
	CopyBridge
	// PinWrapper pins a foreign pointer before GC code stores it.
	PinWrapper
)

func (k BridgeKind) String() string {
	switch k {
	case ViewBridge:
		return "ViewBridge"
	case CopyBridge:
		return "CopyBridge"
	case PinWrapper:
		return "PinWrapper"
	}
	return fmt.Sprintf("BridgeKind(%d)", uint8(k))
}

// ParseBridgeKind maps a bridge name back to its kind.
func ParseBridgeKind(s string) (BridgeKind, error) {
	for _, k := range []BridgeKind{ViewBridge, CopyBridge, PinWrapper} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown bridge kind %q", s)
}

func (k BridgeKind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

func (k *BridgeKind) UnmarshalJSON(data []byte) error { return unmarshalName(data, ParseBridgeKind, k) }

// Bridge is attached to a call edge. Args holds zero-based argument
// indices; Return is set when the result value is adapted.
type Bridge struct {
	Kind   BridgeKind `json:"kind"`
	Args   []int      `json:"args,omitempty"`
	Return bool       `json:"return,omitempty"`
}
