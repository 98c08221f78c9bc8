package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoInitData    = errors.New("init data is not set")
	ErrStaleInitData = errors.New("init data is stale")
	ErrNoAuthDate    = errors.New("init data has no auth_date")
	ErrNoHash        = errors.New("init data has no hash")
	ErrBadSignature  = errors.New("init data signature mismatch")
)

// User is the Telegram user embedded in init data.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// InitData is the parsed form of Telegram.WebApp.initData.
type InitData struct {
	QueryID  string
	User     *User
	AuthDate time.Time
	Hash     string
}

// ParseInitData parses the query string. It does not check the signature.
func ParseInitData(raw string) (InitData, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return InitData{}, fmt.Errorf("parse init data: %w", err)
	}

	ts, ok := authDate(values)
	if !ok {
		return InitData{}, ErrNoAuthDate
	}

	data := InitData{
		QueryID:  values.Get("query_id"),
		AuthDate: time.Unix(ts, 0),
		Hash:     values.Get("hash"),
	}
	if rawUser := values.Get("user"); rawUser != "" {
		var u User
		if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
			return InitData{}, fmt.Errorf("parse init data user: %w", err)
		}
		data.User = &u
	}
	return data, nil
}

func authDate(values url.Values) (int64, bool) {
	raw := strings.TrimSpace(values.Get("auth_date"))
	if raw == "" {
		return 0, false
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// Freshness is the accepted window around auth_date.
type Freshness struct {
	MaxAge     time.Duration
	FutureSkew time.Duration
}

// DefaultFreshness accepts init data signed up to a day ago and tolerates a
// minute of clock skew into the future.
var DefaultFreshness = Freshness{
	MaxAge:     24 * time.Hour,
	FutureSkew: time.Minute,
}

// Fresh reports whether a raw init data string was signed inside the window.
// Missing or unparseable auth_date is never fresh.
func (f Freshness) Fresh(raw string, now time.Time) bool {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return false
	}
	ts, ok := authDate(values)
	if !ok {
		return false
	}
	age := now.Unix() - ts
	return age >= -int64(f.FutureSkew/time.Second) && age <= int64(f.MaxAge/time.Second)
}

// IsInitDataFresh checks raw against DefaultFreshness.
func IsInitDataFresh(raw string, now time.Time) bool {
	return DefaultFreshness.Fresh(raw, now)
}

// Verify checks the hash of raw init data against the bot token the way
// Telegram Web Apps describe it: the secret key is HMAC-SHA256 of the token
// keyed with "WebAppData", and hash is HMAC-SHA256 of the data-check-string.
func Verify(raw, botToken string) error {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return fmt.Errorf("parse init data: %w", err)
	}
	got := values.Get("hash")
	if got == "" {
		return ErrNoHash
	}
	want := sign(values, botToken)
	if !hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
		return ErrBadSignature
	}
	return nil
}

// Sign returns values encoded as init data with a valid hash for botToken.
// The Telegram client does this for real users; it is used for local
// development overrides and tests.
func Sign(values url.Values, botToken string) string {
	out := url.Values{}
	for k, v := range values {
		if k == "hash" {
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	out.Set("hash", sign(out, botToken))
	return out.Encode()
}

func sign(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
