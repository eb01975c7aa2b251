// Package transport defines the collaborator interfaces between the
// BLELink core and the physical radio link.
//
// The core does not talk to hardware. Scanning, connecting, writing bytes,
// and RSSI sampling are provided by a Transport implementation (BlueZ,
// CoreBluetooth bridge, simulator); results come back asynchronously
// through the Handler interface, which the device registry implements.
// Capability negotiation (service/characteristic discovery) is provided by
// a Negotiator, which on success hands the core a ready-to-use write/notify
// channel pair.
//
// Callbacks may be invoked from arbitrary goroutines; Handler
// implementations must be safe for concurrent use.
package transport
