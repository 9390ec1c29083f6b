package components

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/parameter"
	"github.com/harun/restx/pkg/service"
)

// maxRelayBody caps how much of an upstream response is relayed.
const maxRelayBody = 10 << 20

// Relay forwards requests to up to three upstream URIs, moving on to the
// next one when an upstream times out or answers with an unexpected status.
type Relay struct{}

func (Relay) Metadata() component.Metadata {
	return component.Metadata{
		Name:        "Relay",
		Description: "Requests data from a URI and up to two backup URIs",
		Documentation: `A Relay resource proxies a third-party URI and names up to two
alternative URIs to try when it fails. Each URI has its own timeout in
seconds; a negative timeout waits forever.

With expected_status set, any other status also moves on to the next URI.
With expected_status 0 every answer that is not a timeout is returned.
When no URI gives the expected answer the service returns 408.

Only GET and POST are relayed.`,
		Parameters: []service.ParameterSpec{
			{Name: "site_1_uri", Type: parameter.TypeString, Description: "The first URI to try"},
			{Name: "site_1_timeout", Type: parameter.TypeNumber, Description: "Timeout for the first URI in seconds", Default: 10},
			{Name: "site_2_uri", Type: parameter.TypeString, Description: "The second URI to try", Default: ""},
			{Name: "site_2_timeout", Type: parameter.TypeNumber, Description: "Timeout for the second URI in seconds", Default: 10},
			{Name: "site_3_uri", Type: parameter.TypeString, Description: "The third URI to try", Default: ""},
			{Name: "site_3_timeout", Type: parameter.TypeNumber, Description: "Timeout for the third URI in seconds", Default: 10},
			{Name: "account_name", Type: parameter.TypeString, Description: "Account name for basic authentication", Default: ""},
			{Name: "account_password", Type: parameter.TypePassword, Description: "Account password for basic authentication", Default: ""},
			{Name: "expected_status", Type: parameter.TypeNumber, Description: "Status that counts as success; 0 accepts anything but a timeout", Default: 0},
		},
		Services: []service.Spec{
			{
				Name:        "access",
				Description: "Sends the request to the configured URIs in turn",
				OutputTypes: []string{"text/plain", "application/json"},
				Handler:     relayAccess,
			},
		},
	}
}

type relayTarget struct {
	uri     string
	timeout time.Duration
}

func relayTargets(call *service.Call) []relayTarget {
	var targets []relayTarget
	for i := 1; i <= 3; i++ {
		uri, _ := call.ResourceParam(fmt.Sprintf("site_%d_uri", i)).(string)
		if uri == "" {
			continue
		}
		secs, _ := call.ResourceParam(fmt.Sprintf("site_%d_timeout", i)).(float64)
		var timeout time.Duration
		if secs >= 0 {
			timeout = time.Duration(secs * float64(time.Second))
		}
		targets = append(targets, relayTarget{uri: uri, timeout: timeout})
	}
	return targets
}

func relayAccess(ctx context.Context, call *service.Call) (any, error) {
	if call.Method != http.MethodGet && call.Method != http.MethodPost {
		return nil, errdefs.MethodNotAllowed(call.Method)
	}

	var body []byte
	switch in := call.Input.(type) {
	case nil:
	case string:
		body = []byte(in)
	default:
		b, err := json.Marshal(in)
		if err != nil {
			return nil, errdefs.Validation("input can not be relayed: %v", err)
		}
		body = b
	}

	user, _ := call.ResourceParam("account_name").(string)
	password, _ := call.ResourceParam("account_password").(parameter.Password)
	expected, _ := call.ResourceParam("expected_status").(float64)

	data := ""
	for _, t := range relayTargets(call) {
		code, text, err := relayOnce(ctx, call.Host.HTTPClient(), call.Method, t, body, user, password.Reveal())
		if err != nil {
			log.Debug().Err(err).Str("uri", t.uri).Msg("Relay target failed")
			continue
		}
		data = text
		if expected > 0 && code != int(expected) {
			continue
		}
		return service.Status(code, text), nil
	}
	return service.Status(http.StatusRequestTimeout, data), nil
}

func relayOnce(ctx context.Context, client *http.Client, method string, t relayTarget, body []byte, user, password string) (int, string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, t.uri, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" && password != "" {
		req.SetBasicAuth(user, password)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, "", fmt.Errorf("request to %s timed out", t.uri)
		}
		return 0, "", fmt.Errorf("request to %s failed: %w", t.uri, err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayBody))
	if err != nil {
		return 0, "", fmt.Errorf("failed to read response from %s: %w", t.uri, err)
	}
	return resp.StatusCode, string(text), nil
}
