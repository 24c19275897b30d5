package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
)

const shiftDefinitionKeyPrefix = "presence:shiftdef:"

// CachedShifts caches ShiftDefinition rows in the KV store.
// Assignments are per worker per day and always go to the backing repository.
// Any cache error falls through to the backing repository.
type CachedShifts struct {
	next   repository.ShiftsRepository
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedShifts(next repository.ShiftsRepository, kv KV, ttl time.Duration, logger *zap.Logger) *CachedShifts {
	return &CachedShifts{next: next, kv: kv, ttl: ttl, logger: logger}
}

var _ repository.ShiftsRepository = (*CachedShifts)(nil)

func shiftDefinitionKey(code domain.ShiftCode) string {
	return shiftDefinitionKeyPrefix + string(code)
}

func (c *CachedShifts) GetShiftDefinition(ctx context.Context, code domain.ShiftCode) (*domain.ShiftDefinition, error) {
	key := shiftDefinitionKey(code)
	raw, err := c.kv.Get(ctx, key)
	switch {
	case err == nil:
		var def domain.ShiftDefinition
		if jerr := json.Unmarshal([]byte(raw), &def); jerr == nil {
			return &def, nil
		}
		c.logger.Warn("Discarding malformed cached shift definition", zap.String("key", key))
	case !errors.Is(err, ErrMiss):
		c.logger.Warn("Shift definition cache read failed", zap.String("key", key), zap.Error(err))
	}

	def, err := c.next.GetShiftDefinition(ctx, code)
	if err != nil {
		return nil, err
	}
	if b, jerr := json.Marshal(def); jerr == nil {
		if serr := c.kv.Set(ctx, key, string(b), c.ttl); serr != nil {
			c.logger.Warn("Shift definition cache write failed", zap.String("key", key), zap.Error(serr))
		}
	}
	return def, nil
}

func (c *CachedShifts) GetAssignment(ctx context.Context, workerID string, date time.Time) (*domain.ShiftAssignment, error) {
	return c.next.GetAssignment(ctx, workerID, date)
}

// Invalidate drops every cached shift definition.
func (c *CachedShifts) Invalidate(ctx context.Context) error {
	keys, err := c.kv.ScanKeys(ctx, shiftDefinitionKeyPrefix+"*")
	if err != nil {
		return err
	}
	return c.kv.Del(ctx, keys...)
}
