package audible

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/italolelis/aax_downloader/internal/acquisition"
)

const grantedResponse = `{
  "content_license": {
    "asin": "B0001",
    "status_code": "Granted",
    "drm_type": "Adrm",
    "license_response": "opaque-blob",
    "content_metadata": {"content_url": {"offline_url": "https://cds.audible.com/download?asin=B0001"}},
    "voucher": {"key": "0011", "iv": "2233"}
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, Token: "secret-token", UserAgent: "test-agent"}, nil)
	require.NoError(t, err)

	return c
}

func TestRequestLicense_Granted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/1.0/content/B0001/licenserequest", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "test-agent", r.UserAgent())

		var body licenseRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Download", body.ConsumptionType)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(grantedResponse))
	})

	license, err := c.RequestLicense(context.Background(), "B0001")
	require.NoError(t, err)

	assert.Equal(t, "https://cds.audible.com/download?asin=B0001", license.DownloadURL)
	assert.Equal(t, "0011", license.Key)
	assert.Equal(t, "2233", license.IV)
	assert.Equal(t, "test-agent", license.UserAgent)
	assert.Equal(t, "opaque-blob", license.Metadata["license_response"])
}

func TestRequestLicense_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   "no such product",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var authErr *AuthenticationError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   "upstream down",
			check: func(t *testing.T, err error) {
				var netErr *NetworkError
				require.ErrorAs(t, err, &netErr)
				assert.Equal(t, http.StatusBadGateway, netErr.StatusCode)
				assert.Equal(t, "upstream down", netErr.APIMessage)
			},
		},
		{
			name:   "denied",
			status: http.StatusOK,
			body:   `{"content_license": {"status_code": "Denied", "message": "not owned"}}`,
			check: func(t *testing.T, err error) {
				var denied *LicenseDeniedError
				require.ErrorAs(t, err, &denied)
				assert.Equal(t, "Denied", denied.Status)
				assert.Equal(t, "license for B0001 denied (Denied): not owned", err.Error())
			},
		},
		{
			name:   "malformed",
			status: http.StatusOK,
			body:   `{not json`,
			check: func(t *testing.T, err error) {
				var netErr *NetworkError
				require.ErrorAs(t, err, &netErr)
				assert.Equal(t, "malformed response", netErr.APIMessage)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			license, err := c.RequestLicense(context.Background(), "B0001")
			require.Error(t, err)
			assert.Nil(t, license)
			tt.check(t, err)
		})
	}
}

func TestRequestLicense_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Token: "t"}, nil)
	require.NoError(t, err)

	_, err = c.RequestLicense(context.Background(), "B0001")

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Zero(t, netErr.StatusCode)
}

func TestRequestLicense_ErrorsSurviveLicenseAcquirer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := acquisition.NewLicenseAcquirer(NewInstrumentedClient(c, nil)).Acquire(context.Background(), acquisition.ContentItemRef{ID: "B0001"})

	var lErr *acquisition.LicenseError
	require.ErrorAs(t, err, &lErr)

	var authErr *AuthenticationError
	assert.True(t, errors.As(err, &authErr))
	assert.Equal(t, acquisition.FailureLicense, acquisition.KindOf(err))
}
