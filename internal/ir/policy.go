package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Policy is a module-level memory-management discipline.
type Policy uint8

const (
	PolicyBorrow Policy = iota // default
	PolicyGC
	PolicyUnsafe
)

func (p Policy) String() string {
	switch p {
	case PolicyBorrow:
		return "borrow"
	case PolicyGC:
		return "gc"
	case PolicyUnsafe:
		return "unsafe"
	}
	return fmt.Sprintf("Policy(%d)", uint8(p))
}

// ParsePolicy parses "borrow", "gc" or "unsafe" (case-insensitive).
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "borrow":
		return PolicyBorrow, nil
	case "gc":
		return PolicyGC, nil
	case "unsafe":
		return PolicyUnsafe, nil
	}
	return 0, fmt.Errorf("unknown policy %q: must be one of borrow, gc, unsafe", s)
}

func (p Policy) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

func (p *Policy) UnmarshalJSON(data []byte) error { return unmarshalName(data, ParsePolicy, p) }

// Ownership is a per-parameter (or return) ownership annotation.
// OwnershipNone means the source carried no annotation.
type Ownership uint8

const (
	OwnershipNone Ownership = iota
	OwnershipBorrowed
	OwnershipOwned
	OwnershipTake
)

func (o Ownership) String() string {
	switch o {
	case OwnershipNone:
		return ""
	case OwnershipBorrowed:
		return "borrow"
	case OwnershipOwned:
		return "owned"
	case OwnershipTake:
		return "take"
	}
	return fmt.Sprintf("Ownership(%d)", uint8(o))
}

// ParseOwnership parses an annotation; the empty string is OwnershipNone.
func ParseOwnership(s string) (Ownership, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return OwnershipNone, nil
	case "borrow", "borrowed":
		return OwnershipBorrowed, nil
	case "owned", "own":
		return OwnershipOwned, nil
	case "take":
		return OwnershipTake, nil
	}
	return 0, fmt.Errorf("unknown ownership %q: must be one of borrow, owned, take", s)
}

// Effective resolves an absent annotation to Borrowed.
func (o Ownership) Effective() Ownership {
	if o == OwnershipNone {
		return OwnershipBorrowed
	}
	return o
}

func (o Ownership) MarshalJSON() ([]byte, error) { return json.Marshal(o.String()) }

func (o *Ownership) UnmarshalJSON(data []byte) error { return unmarshalName(data, ParseOwnership, o) }

// CallKind distinguishes plain calls from concurrency boundaries.
type CallKind uint8

const (
	CallPlain CallKind = iota
	CallSpawn
	CallChanSend
	CallChanRecv
	CallActorSend
)

var callKindNames = map[CallKind]string{
	CallPlain:     "call",
	CallSpawn:     "spawn",
	CallChanSend:  "chan_send",
	CallChanRecv:  "chan_recv",
	CallActorSend: "actor_send",
}

func (k CallKind) String() string {
	if n, ok := callKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("CallKind(%d)", uint8(k))
}

// ParseCallKind parses a call kind; empty means a plain call.
func ParseCallKind(s string) (CallKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CallPlain, nil
	}
	for k, n := range callKindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown call kind %q: must be one of call, spawn, chan_send, chan_recv, actor_send", s)
}

func (k CallKind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

func (k *CallKind) UnmarshalJSON(data []byte) error { return unmarshalName(data, ParseCallKind, k) }

// CaptureMode is how a value crosses a thread boundary.
type CaptureMode uint8

const (
	CaptureMove CaptureMode = iota
	CaptureShare
)

func (m CaptureMode) String() string {
	if m == CaptureShare {
		return "share"
	}
	return "move"
}

// ParseCaptureMode parses "move" (default) or "share".
func ParseCaptureMode(s string) (CaptureMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "move":
		return CaptureMove, nil
	case "share":
		return CaptureShare, nil
	}
	return 0, fmt.Errorf("unknown capture mode %q: must be move or share", s)
}

func (m CaptureMode) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

func (m *CaptureMode) UnmarshalJSON(data []byte) error {
	return unmarshalName(data, ParseCaptureMode, m)
}

// unmarshalName decodes a JSON string and maps it through parse.
func unmarshalName[T any](data []byte, parse func(string) (T, error), dst *T) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := parse(s)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
