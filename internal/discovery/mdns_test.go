package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		entry        *zeroconf.ServiceEntry
		wantNil      bool
		wantServerID string
		wantIP       string
		wantPort     int
		wantTLS      bool
	}{
		{
			name: "trellis instance with IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "trellis"},
				HostName:      "build-box.local.",
				Port:          8080,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
				Text:          []string{"server=trellis", "tls=0", "path=/"},
			},
			wantServerID: "trellis",
			wantIP:       "192.168.4.16",
			wantPort:     8080,
		},
		{
			name: "TLS listener",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "secure"},
				HostName:      "secure.local.",
				Port:          8443,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
				Text:          []string{"server=edge", "tls=1"},
			},
			wantServerID: "edge",
			wantIP:       "10.0.0.5",
			wantPort:     8443,
			wantTLS:      true,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "v6"},
				Port:          80,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
				Text:          []string{"server=trellis"},
			},
			wantServerID: "trellis",
			wantIP:       "fe80::1",
			wantPort:     80,
		},
		{
			name: "both families (should prefer IPv4)",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "dual"},
				Port:          80,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6:      []net.IP{net.ParseIP("fe80::2")},
				Text:          []string{"server=trellis"},
			},
			wantServerID: "trellis",
			wantIP:       "192.168.1.50",
			wantPort:     80,
		},
		{
			name: "some other HTTP service",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "printer"},
				Port:          80,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.1")},
				Text:          []string{"path=/", "srcvers=1D90645"},
			},
			wantNil: true,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "ghost"},
				Port:          80,
				Text:          []string{"server=trellis"},
			},
			wantNil: true,
		},
		{
			name: "no port",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "portless"},
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.2")},
				Text:          []string{"server=trellis"},
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseServiceEntry(tt.entry, now)
			if tt.wantNil {
				if got != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("parseServiceEntry() = nil, want instance")
			}
			if got.Name != tt.entry.Instance {
				t.Errorf("Name = %v, want %v", got.Name, tt.entry.Instance)
			}
			if got.ServerID != tt.wantServerID {
				t.Errorf("ServerID = %v, want %v", got.ServerID, tt.wantServerID)
			}
			if got.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", got.IP, tt.wantIP)
			}
			if got.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", got.Port, tt.wantPort)
			}
			if got.TLS != tt.wantTLS {
				t.Errorf("TLS = %v, want %v", got.TLS, tt.wantTLS)
			}
			if !got.DiscoveredAt.Equal(now) {
				t.Errorf("DiscoveredAt = %v, want %v", got.DiscoveredAt, now)
			}
		})
	}
}

func TestParseTXT(t *testing.T) {
	got := parseTXT([]string{"server=trellis", "flag", "path=/a=b", "=orphan"})

	want := map[string]string{"server": "trellis", "flag": "", "path": "/a=b"}
	if len(got) != len(want) {
		t.Fatalf("parseTXT() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("parseTXT()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestTXTRecordsRoundTrip(t *testing.T) {
	ad := Advertisement{Instance: "edge", ServerID: "edge-1", Port: 8443, TLS: true}
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: ad.Instance},
		Port:          ad.Port,
		AddrIPv4:      []net.IP{net.ParseIP("127.0.0.1")},
		Text:          txtRecords(ad),
	}

	inst := parseServiceEntry(entry, time.Now())
	if inst == nil {
		t.Fatal("advertised records were not recognised")
	}
	if inst.ServerID != "edge-1" || !inst.TLS || inst.GetMetadata("path") != "/" {
		t.Errorf("round trip lost data: %+v", inst)
	}
}

func TestAdvertiseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		ad   Advertisement
	}{
		{"missing instance", Advertisement{Port: 8080}},
		{"zero port", Advertisement{Instance: "trellis"}},
		{"port out of range", Advertisement{Instance: "trellis", Port: 70000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Advertise(tt.ad, nil); err == nil {
				t.Error("Advertise() expected error, got nil")
			}
		})
	}
}

func TestNewScanner(t *testing.T) {
	if s := NewScanner(); s.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", s.Timeout, DefaultScanTimeout)
	}
}

func TestInstance(t *testing.T) {
	tests := []struct {
		name    string
		inst    *Instance
		wantURL string
		wantStr string
	}{
		{
			name:    "plain HTTP",
			inst:    &Instance{Name: "trellis", ServerID: "trellis", IP: "192.168.4.16", Port: 8080},
			wantURL: "http://192.168.4.16:8080",
			wantStr: "trellis (trellis) at 192.168.4.16:8080",
		},
		{
			name:    "TLS over IPv6",
			inst:    &Instance{Name: "edge", ServerID: "edge-1", IP: "fe80::1", Port: 8443, TLS: true},
			wantURL: "https://[fe80::1]:8443",
			wantStr: "edge (edge-1) at [fe80::1]:8443",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inst.BaseURL(); got != tt.wantURL {
				t.Errorf("BaseURL() = %v, want %v", got, tt.wantURL)
			}
			if got := tt.inst.String(); got != tt.wantStr {
				t.Errorf("String() = %v, want %v", got, tt.wantStr)
			}
		})
	}
}

func TestInstanceGetMetadata(t *testing.T) {
	var empty Instance
	if got := empty.GetMetadata("server"); got != "" {
		t.Errorf("GetMetadata() on nil metadata = %q, want empty", got)
	}
	inst := &Instance{Metadata: map[string]string{"path": "/"}}
	if got := inst.GetMetadata("path"); got != "/" {
		t.Errorf("GetMetadata() = %q, want /", got)
	}
}
