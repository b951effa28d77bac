package discovery

import (
	"fmt"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

// Advertisement describes the listener to announce.
type Advertisement struct {
	// Instance is the mDNS instance name; browsers show it to users
	Instance string
	ServerID string
	Port     int
	TLS      bool
}

// Advertiser announces one trellis listener over mDNS until shut down.
type Advertiser struct {
	server *zeroconf.Server
	logger *zap.Logger
	once   sync.Once
}

// Advertise registers ad on every multicast-capable interface.
func Advertise(ad Advertisement, logger *zap.Logger) (*Advertiser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ad.Instance == "" {
		return nil, fmt.Errorf("mDNS instance name is required")
	}
	if ad.Port <= 0 || ad.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d for mDNS advertisement", ad.Port)
	}

	server, err := zeroconf.Register(ad.Instance, ServiceType, ServiceDomain, ad.Port, txtRecords(ad), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logger.Info("Advertising over mDNS",
		zap.String("instance", ad.Instance),
		zap.String("service", ServiceType),
		zap.Int("port", ad.Port),
	)
	return &Advertiser{server: server, logger: logger}, nil
}

func txtRecords(ad Advertisement) []string {
	tls := "0"
	if ad.TLS {
		tls = "1"
	}
	return []string{
		txtServer + "=" + ad.ServerID,
		txtTLS + "=" + tls,
		txtPath + "=/",
	}
}

// Close withdraws the advertisement. It is safe to call more than once.
func (a *Advertiser) Close() error {
	a.once.Do(func() {
		a.server.Shutdown()
		a.logger.Debug("mDNS advertisement withdrawn")
	})
	return nil
}
