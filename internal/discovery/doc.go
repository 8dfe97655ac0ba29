// Package discovery advertises and finds formrelay instances over mDNS.
//
// A relay started with `formrelay serve --advertise` registers an
// "_http._tcp" service whose TXT records carry app=formrelay, the version,
// the number of registered forms and the page path. Scanner browses the same
// service type and keeps only entries with that app tag.
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Relays must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
