package access

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CaptchaVerifier calls the server-side bot-verification endpoint. The
// widget hands the client a one-time token; this exchanges it, together
// with the caller's IP, for a pass/fail verdict.
type CaptchaVerifier struct {
	endpoint string
	secret   string
	client   *http.Client
	logger   Logger
}

// CaptchaOption customizes verifier construction.
type CaptchaOption func(*CaptchaVerifier)

// WithCaptchaHTTPClient overrides the HTTP client.
func WithCaptchaHTTPClient(client *http.Client) CaptchaOption {
	return func(v *CaptchaVerifier) {
		if client != nil {
			v.client = client
		}
	}
}

// WithCaptchaLogger overrides the logger.
func WithCaptchaLogger(logger Logger) CaptchaOption {
	return func(v *CaptchaVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewCaptchaVerifier builds a verifier for the given endpoint and secret.
func NewCaptchaVerifier(endpoint, secret string, opts ...CaptchaOption) *CaptchaVerifier {
	v := &CaptchaVerifier{
		endpoint: endpoint,
		secret:   secret,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	return v
}

type captchaRequest struct {
	Secret string `json:"secret"`
	Token  string `json:"token"`
	IP     string `json:"ip,omitempty"`
}

type captchaResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error_codes,omitempty"`
}

// Verify exchanges a widget token for a verdict. A network or decode
// failure is an error, not a rejection, so callers can distinguish "the
// human failed the challenge" from "we could not ask".
func (v *CaptchaVerifier) Verify(ctx context.Context, token, ip string) (bool, error) {
	body, err := json.Marshal(captchaRequest{
		Secret: v.secret,
		Token:  token,
		IP:     ip,
	})
	if err != nil {
		return false, fmt.Errorf("captcha request encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("captcha request build: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("captcha verify call: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return false, fmt.Errorf("captcha verify status: %d", res.StatusCode)
	}

	var verdict captchaResponse
	if err := json.NewDecoder(res.Body).Decode(&verdict); err != nil {
		return false, fmt.Errorf("captcha response decode: %w", err)
	}

	if !verdict.Success && len(verdict.ErrorCodes) > 0 {
		v.logger.Debug("captcha rejected", "codes", verdict.ErrorCodes)
	}

	return verdict.Success, nil
}
