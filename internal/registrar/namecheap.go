// Package registrar wraps the Namecheap-style registrar API used to check
// domain availability and execute ownership transfers at settlement.  The API
// speaks XML over GET requests with credentials passed as query parameters.
package registrar

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/google/uuid"

	"github.com/alanadi/market/internal/config"
	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/metrics"
)

// Client calls the registrar API.
type Client struct {
	baseURL  string
	apiUser  string
	apiKey   string
	username string
	clientIP string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient builds a registrar client from config.
func NewClient(cfg config.RegistrarConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		apiUser:  cfg.APIUser,
		apiKey:   cfg.APIKey,
		username: cfg.Username,
		clientIP: cfg.ClientIP,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

// apiResponse is the registrar's XML envelope.
type apiResponse struct {
	XMLName xml.Name `xml:"ApiResponse"`
	Status  string   `xml:"Status,attr"`
	Errors  struct {
		Items []apiError `xml:"Error"`
	} `xml:"Errors"`
	CommandResponse commandResponse `xml:"CommandResponse"`
}

type apiError struct {
	Number  string `xml:"Number,attr"`
	Message string `xml:",chardata"`
}

type commandResponse struct {
	CheckResult    *checkResult    `xml:"DomainCheckResult"`
	TransferResult *transferResult `xml:"DomainTransferResult"`
}

type checkResult struct {
	Domain    string `xml:"Domain,attr"`
	Available bool   `xml:"Available,attr"`
	Premium   bool   `xml:"IsPremiumName,attr"`
}

type transferResult struct {
	Domain     string `xml:"DomainName,attr"`
	TransferID string `xml:"TransferID,attr"`
	Success    bool   `xml:"Transfer,attr"`
}

// Availability is the result of a domain availability check.
type Availability struct {
	Domain    string `json:"domain"`
	Available bool   `json:"available"`
	Premium   bool   `json:"premium"`
}

// CheckAvailable queries the registrar for a domain name's availability.
func (c *Client) CheckAvailable(ctx context.Context, name string) (*Availability, error) {
	params := url.Values{}
	params.Set("Command", "namecheap.domains.check")
	params.Set("DomainList", strings.ToLower(name))

	var avail *Availability
	err := retry.Do(
		func() error {
			resp, err := c.call(ctx, params)
			if err != nil {
				return err
			}
			res := resp.CommandResponse.CheckResult
			if res == nil {
				return retry.Unrecoverable(fmt.Errorf("registrar: missing check result for %q", name))
			}
			avail = &Availability{Domain: res.Domain, Available: res.Available, Premium: res.Premium}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		metrics.ExternalCallFailures.WithLabelValues("registrar").Inc()
		return nil, fmt.Errorf("registrar.CheckAvailable: %w", err)
	}
	return avail, nil
}

// TransferDomain moves a domain between marketplace accounts at the registrar.
// idemKey is forwarded so a retried transfer after a timeout resolves to the
// original operation instead of starting a second one.
func (c *Client) TransferDomain(ctx context.Context, name string, fromUserID, toUserID uuid.UUID, idemKey string) error {
	params := url.Values{}
	params.Set("Command", "namecheap.domains.transfer.create")
	params.Set("DomainName", strings.ToLower(name))
	params.Set("FromAccount", fromUserID.String())
	params.Set("ToAccount", toUserID.String())
	params.Set("OperationKey", idemKey)

	err := retry.Do(
		func() error {
			resp, err := c.call(ctx, params)
			if err != nil {
				return err
			}
			res := resp.CommandResponse.TransferResult
			if res == nil || !res.Success {
				return fmt.Errorf("registrar: transfer of %q not confirmed", name)
			}
			c.logger.Info("domain transferred", "domain", name, "transfer_id", res.TransferID)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		metrics.ExternalCallFailures.WithLabelValues("registrar").Inc()
		return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	return nil
}

// call builds the full API URL with credentials, executes the request and
// decodes the XML envelope, translating API-level errors.
func (c *Client) call(ctx context.Context, params url.Values) (*apiResponse, error) {
	params.Set("ApiUser", c.apiUser)
	params.Set("ApiKey", c.apiKey)
	params.Set("UserName", c.username)
	params.Set("ClientIp", c.clientIP)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("registrar: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registrar: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("registrar: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registrar: unexpected status %d", resp.StatusCode)
	}

	var env apiResponse
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("registrar: decode response: %w", err)
	}

	if !strings.EqualFold(env.Status, "OK") {
		if len(env.Errors.Items) > 0 {
			e := env.Errors.Items[0]
			return nil, retry.Unrecoverable(
				fmt.Errorf("registrar: api error %s: %s", e.Number, strings.TrimSpace(e.Message)))
		}
		return nil, fmt.Errorf("registrar: api status %q", env.Status)
	}
	return &env, nil
}
