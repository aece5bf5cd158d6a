package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisBalanceCache keeps computed balances in Redis.
type RedisBalanceCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisBalanceCache instantiates the cache helper.
func NewRedisBalanceCache(client redis.Cmdable, ttl time.Duration) *RedisBalanceCache {
	return &RedisBalanceCache{client: client, ttl: ttl}
}

type cachedBalance struct {
	AccountID int64  `json:"account_id"`
	Code      string `json:"code"`
	Nature    Nature `json:"nature"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	Net       string `json:"net"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
}

// Get loads a cached balance. A missing key is not an error.
func (c *RedisBalanceCache) Get(ctx context.Context, key string) (Balance, bool, error) {
	if c == nil || c.client == nil {
		return Balance{}, false, nil
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Balance{}, false, nil
	}
	if err != nil {
		return Balance{}, false, err
	}
	var raw cachedBalance
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Balance{}, false, err
	}
	bal, err := raw.decode()
	if err != nil {
		return Balance{}, false, err
	}
	return bal, true, nil
}

// Set stores a balance under key for the configured TTL.
func (c *RedisBalanceCache) Set(ctx context.Context, key string, bal Balance) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(encodeBalance(bal))
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

func encodeBalance(b Balance) cachedBalance {
	out := cachedBalance{
		AccountID: b.AccountID,
		Code:      b.Code,
		Nature:    b.Nature,
		Debit:     b.DebitTotal.StringFixed(amountScale),
		Credit:    b.CreditTotal.StringFixed(amountScale),
		Net:       b.NetBalance.StringFixed(amountScale),
	}
	if !b.Range.From.IsZero() {
		out.From = b.Range.From.Format(dateLayout)
	}
	if !b.Range.To.IsZero() {
		out.To = b.Range.To.Format(dateLayout)
	}
	return out
}

func (c cachedBalance) decode() (Balance, error) {
	bal := Balance{AccountID: c.AccountID, Code: c.Code, Nature: c.Nature}
	var err error
	if bal.DebitTotal, err = decimal.NewFromString(c.Debit); err != nil {
		return Balance{}, err
	}
	if bal.CreditTotal, err = decimal.NewFromString(c.Credit); err != nil {
		return Balance{}, err
	}
	if bal.NetBalance, err = decimal.NewFromString(c.Net); err != nil {
		return Balance{}, err
	}
	if c.From != "" {
		if bal.Range.From, err = time.Parse(dateLayout, c.From); err != nil {
			return Balance{}, err
		}
	}
	if c.To != "" {
		if bal.Range.To, err = time.Parse(dateLayout, c.To); err != nil {
			return Balance{}, err
		}
	}
	return bal, nil
}
