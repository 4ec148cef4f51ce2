package nonce

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"readconfirm/internal/errs"
	"readconfirm/internal/ports"
)

const (
	saltBytes = 8
	macChars  = 20

	usedKeyPrefix = "nonce_used:"
)

// HMACIssuer mints tokens valid for the current and previous half-lifetime tick.
// With a cache attached, each token verifies at most once.
type HMACIssuer struct {
	secret   []byte
	lifetime time.Duration
	cache    ports.Cache
	now      func() time.Time
}

var _ ports.TokenIssuer = (*HMACIssuer)(nil)

func NewHMACIssuer(secret string, lifetime time.Duration, cache ports.Cache) (*HMACIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("nonce secret is required")
	}
	if lifetime < 2*time.Second {
		return nil, errors.New("nonce lifetime must be at least 2s")
	}
	return &HMACIssuer{
		secret:   []byte(secret),
		lifetime: lifetime,
		cache:    cache,
		now:      time.Now,
	}, nil
}

func (i *HMACIssuer) Issue(ctx context.Context, action string, userID uint64, itemID uint64) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if strings.TrimSpace(action) == "" {
		return "", errors.New("action is required")
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", errs.Wrap(err, "read nonce salt")
	}
	saltHex := hex.EncodeToString(salt)
	return saltHex + "." + i.mac(action, userID, itemID, i.tick(), saltHex), nil
}

func (i *HMACIssuer) Verify(ctx context.Context, action string, token string, userID uint64, itemID uint64) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}

	saltHex, mac, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || len(saltHex) != saltBytes*2 || len(mac) != macChars {
		return false, nil
	}

	tick := i.tick()
	valid := false
	for _, candidate := range []int64{tick, tick - 1} {
		if hmac.Equal([]byte(mac), []byte(i.mac(action, userID, itemID, candidate, saltHex))) {
			valid = true
			break
		}
	}
	if !valid || i.cache == nil {
		return valid, nil
	}

	usedKey := usedKeyPrefix + saltHex + mac
	if _, used, err := i.cache.Get(ctx, usedKey); err != nil {
		return false, errs.Wrap(err, "check nonce use")
	} else if used {
		return false, nil
	}
	if err := i.cache.Set(ctx, usedKey, "1", i.lifetime); err != nil {
		return false, errs.Wrap(err, "record nonce use")
	}
	return true, nil
}

func (i *HMACIssuer) tick() int64 {
	half := int64(i.lifetime / 2)
	now := i.now().UnixNano()
	return (now + half - 1) / half
}

func (i *HMACIssuer) mac(action string, userID uint64, itemID uint64, tick int64, salt string) string {
	h := hmac.New(sha256.New, i.secret)
	h.Write([]byte(strings.Join([]string{
		action,
		strconv.FormatUint(userID, 10),
		strconv.FormatUint(itemID, 10),
		strconv.FormatInt(tick, 10),
		salt,
	}, "|")))
	return hex.EncodeToString(h.Sum(nil))[:macChars]
}
