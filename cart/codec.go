package cart

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goflare.io/storefront/models"
)

// maxCount is the largest count an entry can hold without overflowing.
var maxCount = decimal.NewFromInt(math.MaxInt64)

// 持久化格式: {"42": {"count": 2, "price": 79.53}}
type wireEntry struct {
	Count *json.Number `json:"count"`
	Price *json.Number `json:"price"`
}

type wireOut struct {
	Count int64       `json:"count"`
	Price json.Number `json:"price"`
}

// Encode serializes the whole ledger. Entries that break the ledger
// invariants are not written.
func Encode(ledger models.CartLedger) ([]byte, error) {
	clean, _ := Sanitize(ledger)
	out := make(map[string]wireOut, len(clean))
	for id, entry := range clean {
		out[strconv.FormatInt(int64(id), 10)] = wireOut{
			Count: entry.Count,
			Price: json.Number(entry.UnitPrice.String()),
		}
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode cart ledger")
	}
	return payload, nil
}

// Decode validates a persisted payload. Structural problems return a
// *DeserializationError; entries violating the ledger invariants are dropped.
func Decode(payload []byte) (models.CartLedger, error) {
	ledger, _, err := decode(payload)
	return ledger, err
}

func decode(payload []byte) (models.CartLedger, int, error) {
	ledger := models.NewCartLedger()
	if len(bytes.TrimSpace(payload)) == 0 {
		return ledger, 0, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return models.NewCartLedger(), 0, &DeserializationError{Err: err}
	}

	dropped := 0
	for key, value := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return models.NewCartLedger(), 0, &DeserializationError{Err: errors.Wrapf(err, "product id %q", key)}
		}

		var entry wireEntry
		if err = json.Unmarshal(value, &entry); err != nil {
			return models.NewCartLedger(), 0, &DeserializationError{Err: errors.Wrapf(err, "entry %d", id)}
		}
		if entry.Count == nil || entry.Price == nil {
			dropped++
			continue
		}

		count, err := decimal.NewFromString(entry.Count.String())
		if err != nil {
			return models.NewCartLedger(), 0, &DeserializationError{Err: errors.Wrapf(err, "count of %d", id)}
		}
		price, err := decimal.NewFromString(entry.Price.String())
		if err != nil {
			return models.NewCartLedger(), 0, &DeserializationError{Err: errors.Wrapf(err, "price of %d", id)}
		}
		if !count.IsInteger() || !count.IsPositive() || count.GreaterThan(maxCount) || price.IsNegative() {
			dropped++
			continue
		}

		ledger[models.ProductID(id)] = models.CartEntry{Count: count.IntPart(), UnitPrice: price}
	}

	return ledger, dropped, nil
}

// Sanitize removes entries with a non-positive count or a negative price and
// returns how many were removed. The input is left untouched.
func Sanitize(ledger models.CartLedger) (models.CartLedger, int) {
	clean := make(models.CartLedger, len(ledger))
	dropped := 0
	for id, entry := range ledger {
		if entry.Count <= 0 || entry.UnitPrice.IsNegative() {
			dropped++
			continue
		}
		clean[id] = entry
	}
	return clean, dropped
}

// decodePayload is the shared Load path of every repository: it never fails.
func decodePayload(payload []byte, logger *zap.Logger) models.CartLedger {
	ledger, dropped, err := decode(payload)
	if err != nil {
		logger.Warn("Discarding unreadable cart ledger", zap.Error(err), zap.Int("payload_size", len(payload)))
		return models.NewCartLedger()
	}
	if dropped > 0 {
		logger.Debug("Dropped invalid cart entries", zap.Int("dropped", dropped))
	}
	return ledger
}
