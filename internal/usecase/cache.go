package usecase

import (
	"sync"
	"time"

	"mart/internal/domain/model"
)

type cacheEntry struct {
	order     model.Order
	expiresAt time.Time
}

// 読み取りパスのcache-aside。書き込みは常にDBへ行き、ここはinvalidateするだけ。
type orderCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	clock Clock

	byID     map[string]cacheEntry
	byNumber map[string]string // order_number -> order_id
}

func newOrderCache(ttl time.Duration, clock Clock) *orderCache {
	return &orderCache{
		ttl:      ttl,
		clock:    clock,
		byID:     map[string]cacheEntry{},
		byNumber: map[string]string{},
	}
}

func (c *orderCache) getByID(orderID string) (model.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.byID[orderID]
	if !ok || c.clock.Now().After(e.expiresAt) {
		return model.Order{}, false
	}
	return e.order, true
}

func (c *orderCache) getByNumber(orderNumber string) (model.Order, bool) {
	c.mu.RLock()
	id, ok := c.byNumber[orderNumber]
	c.mu.RUnlock()
	if !ok {
		return model.Order{}, false
	}
	return c.getByID(id)
}

func (c *orderCache) put(order model.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID[order.ID] = cacheEntry{order: order, expiresAt: c.clock.Now().Add(c.ttl)}
	c.byNumber[order.OrderNumber] = order.ID
}

// ミューテーション後に必ず呼ぶ。消し忘れは古い状態を返し続ける。
func (c *orderCache) invalidate(orderID string, orderNumber string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.byID, orderID)
	delete(c.byNumber, orderNumber)
}
