package audible

import (
	"context"

	"github.com/italolelis/aax_downloader/internal/acquisition"
	"github.com/italolelis/aax_downloader/internal/telemetry"
)

// InstrumentedClient wraps a license client with telemetry.
type InstrumentedClient struct {
	client    acquisition.LicenseClient
	telemetry *telemetry.Telemetry
}

func NewInstrumentedClient(client acquisition.LicenseClient, tel *telemetry.Telemetry) *InstrumentedClient {
	return &InstrumentedClient{client: client, telemetry: tel}
}

// RequestLicense requests a license with telemetry.
func (c *InstrumentedClient) RequestLicense(ctx context.Context, asin string) (*acquisition.DownloadLicense, error) {
	var result *acquisition.DownloadLicense

	err := c.telemetry.InstrumentClientOperation(ctx, "audible", "request_license", func(ctx context.Context) error {
		var err error

		result, err = c.client.RequestLicense(ctx, asin)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
