// Package discovery announces and finds trellis servers over mDNS.
//
// A running server may advertise its listener as an "_http._tcp" service.
// The TXT record carries the server id, whether the listener speaks TLS and
// the root path:
//
//	server=trellis tls=0 path=/
//
// Other _http._tcp services on the network (printers, routers) have no
// server key and are skipped by the Scanner.
//
// # Usage Example
//
//	ad, err := discovery.Advertise(discovery.Advertisement{
//	    Instance: "trellis",
//	    ServerID: "trellis",
//	    Port:     8080,
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer ad.Close()
//
//	instances, err := discovery.NewScanner().Scan(ctx)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Browsers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
