package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/Web3Newcomer/polymarket-weather/internal/config"
)

// Auth signs CLOB requests with L2 API credentials (HMAC). The bot trades
// through a funder proxy wallet and never holds an L1 key; creds are
// provisioned out of band and passed in via config/env.
type Auth struct {
	apiKey     string
	secret     string
	passphrase string
	funder     string
}

// NewAuth builds the L2 request signer from config.
func NewAuth(cfg config.APIConfig) (*Auth, error) {
	if cfg.ApiKey == "" || cfg.Secret == "" || cfg.Passphrase == "" {
		return nil, fmt.Errorf("missing L2 credentials (api key, secret, passphrase)")
	}
	return &Auth{
		apiKey:     cfg.ApiKey,
		secret:     cfg.Secret,
		passphrase: cfg.Passphrase,
		funder:     cfg.FunderAddress,
	}, nil
}

// FunderAddress returns the proxy wallet orders settle against.
func (a *Auth) FunderAddress() string {
	return a.funder
}

// L2Headers builds the POLY_* auth headers for one request.
func (a *Auth) L2Headers(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := a.buildHMAC(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("build hmac: %w", err)
	}
	return map[string]string{
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  timestamp,
		"POLY_API_KEY":    a.apiKey,
		"POLY_PASSPHRASE": a.passphrase,
	}, nil
}

// buildHMAC signs timestamp+method+path+body with the base64-encoded API
// secret. Polymarket issues secrets in URL-safe base64, but older creds
// use standard alphabets, so every variant is tried.
func (a *Auth) buildHMAC(timestamp, method, path, body string) (string, error) {
	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}

	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(a.secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	message := timestamp + method + path
	if body != "" {
		message += body
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}
