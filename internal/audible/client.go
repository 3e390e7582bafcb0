package audible

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/italolelis/aax_downloader/internal/acquisition"
	"github.com/italolelis/aax_downloader/internal/logctx"
)

const (
	DefaultBaseURL = "https://api.audible.com"

	licenseGranted    = "Granted"
	maxErrorBodyBytes = 4 * 1024
	opLicenseRequest  = "license_request"
)

// Config holds the API client settings.
type Config struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
}

// Client talks to the Audible API on behalf of one account.
type Client struct {
	baseURL    *url.URL
	userAgent  string
	httpClient *http.Client
}

// NewClient builds a client that authenticates every request with the configured bearer token.
// transport is the base round tripper, nil means http.DefaultTransport.
func NewClient(cfg Config, transport http.RoundTripper) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	if transport == nil {
		transport = http.DefaultTransport
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: transport})
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})

	httpClient := oauth2.NewClient(ctx, tokenSource)
	httpClient.Timeout = cfg.Timeout

	return &Client{
		baseURL:    base,
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
	}, nil
}

type licenseRequest struct {
	ConsumptionType string `json:"consumption_type"`
	DRMType         string `json:"drm_type"`
	Quality         string `json:"quality"`
}

type licenseResponse struct {
	ContentLicense struct {
		ASIN            string `json:"asin"`
		StatusCode      string `json:"status_code"`
		DRMType         string `json:"drm_type"`
		LicenseResponse string `json:"license_response"`
		Message         string `json:"message"`
		ContentMetadata struct {
			ContentURL struct {
				OfflineURL string `json:"offline_url"`
			} `json:"content_url"`
		} `json:"content_metadata"`
		Voucher struct {
			Key string `json:"key"`
			IV  string `json:"iv"`
		} `json:"voucher"`
	} `json:"content_license"`
}

// RequestLicense asks for a download license for the product identified by asin.
func (c *Client) RequestLicense(ctx context.Context, asin string) (*acquisition.DownloadLicense, error) {
	logger := logctx.LoggerFromContext(ctx).With("asin", asin)

	body, err := json.Marshal(licenseRequest{
		ConsumptionType: "Download",
		DRMType:         "Adrm",
		Quality:         "High",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode license request: %w", err)
	}

	endpoint := c.baseURL.JoinPath("1.0", "content", url.PathEscape(asin), "licenserequest")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build license request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.ErrorContext(ctx, "license request failed", "err", err)

		return nil, &NetworkError{Operation: opLicenseRequest, APIMessage: err.Error(), Err: err}
	}

	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		logger.ErrorContext(ctx, "license request rejected", "status", resp.StatusCode, "err", err)

		return nil, err
	}

	var lr licenseResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, &NetworkError{Operation: opLicenseRequest, StatusCode: resp.StatusCode, APIMessage: "malformed response", Err: err}
	}

	cl := lr.ContentLicense
	if !strings.EqualFold(cl.StatusCode, licenseGranted) {
		return nil, &LicenseDeniedError{ASIN: asin, Status: cl.StatusCode, Reason: cl.Message}
	}

	logger.DebugContext(ctx, "license granted", "drm_type", cl.DRMType)

	return &acquisition.DownloadLicense{
		DownloadURL: cl.ContentMetadata.ContentURL.OfflineURL,
		Key:         cl.Voucher.Key,
		IV:          cl.Voucher.IV,
		UserAgent:   c.userAgent,
		Metadata: map[string]any{
			"asin":             asin,
			"drm_type":         cl.DRMType,
			"license_response": cl.LicenseResponse,
		},
	}, nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(string(msg)))
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthenticationError{Operation: opLicenseRequest, StatusCode: resp.StatusCode}
	}

	return &NetworkError{
		Operation:  opLicenseRequest,
		StatusCode: resp.StatusCode,
		APIMessage: strings.TrimSpace(string(msg)),
		Err:        errors.New(resp.Status),
	}
}
