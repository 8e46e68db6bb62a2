package coordinator

import "github.com/erisprotocol/ve3engine/crypto"

// TypeCapabilityDenied is the event type of CapabilityDenied, which
// describes an action rejected for lacking a required capability. The
// Coordinator does not emit it: a rejection is recorded only through
// EngineMetrics.ObserveCapabilityDenial when Metrics is set.
const TypeCapabilityDenied = "coordinator.capabilityDenied"

// CapabilityDenied reports a rejected privileged action.
type CapabilityDenied struct {
	Principal [20]byte
	Role      Role
}

// EventType implements events.Event.
func (CapabilityDenied) EventType() string { return TypeCapabilityDenied }

func (e CapabilityDenied) Attributes() map[string]string {
	return map[string]string{
		"principal": crypto.MustNewAddress(crypto.VE3Prefix, e.Principal[:]).String(),
		"role":      string(e.Role),
	}
}
