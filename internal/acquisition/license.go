package acquisition

import (
	"context"
	"net/url"
)

// LicenseAcquirer obtains the download license for an item. It does not retry.
type LicenseAcquirer struct {
	client LicenseClient
}

func NewLicenseAcquirer(client LicenseClient) *LicenseAcquirer {
	return &LicenseAcquirer{client: client}
}

// Acquire requests a license and checks that it points at an absolute URL.
// Collaborator errors are kept in the chain so callers can still match them with errors.Is and errors.As.
func (a *LicenseAcquirer) Acquire(ctx context.Context, item ContentItemRef) (*DownloadLicense, error) {
	license, err := a.client.RequestLicense(ctx, item.ID)
	if err != nil {
		return nil, &LicenseError{ItemID: item.ID, Reason: "license request failed", Err: err}
	}

	if license == nil {
		return nil, &LicenseError{ItemID: item.ID, Reason: "empty license"}
	}

	u, err := url.Parse(license.DownloadURL)
	if err != nil {
		return nil, &LicenseError{ItemID: item.ID, Reason: "invalid download url", Err: err}
	}

	if !u.IsAbs() || u.Host == "" {
		return nil, &LicenseError{ItemID: item.ID, Reason: "download url is not absolute"}
	}

	return license, nil
}
