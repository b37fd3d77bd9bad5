// Package discovery finds probe bridges on the local network via mDNS.
//
// Bridges advertise as "_rttap-bridge._tcp" services; the scanner browses
// for a bounded window and returns everything that answered with an IPv4
// address. The same package carries the Advertise half used by the bundled
// bridge daemon.
package discovery
