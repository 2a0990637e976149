// Package changefeed 把订单变化事件广播到 Redis 频道，
// 供其他进程（或前端网关）订阅做实时刷新。发布是尽力而为的：
// Redis 不可用时只记日志，不影响订单主流程。
package changefeed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channel = "booknest:orders:changed"

// Event 订单变化事件
type Event struct {
	OrderID     int       `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      int       `json:"user_id"`
	Kind        string    `json:"kind"` // created / payment_submitted / payment_verified / ...
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher 变化事件发布器
type Publisher interface {
	Publish(event Event)
}

type redisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher 创建基于 Redis 的发布器
func NewRedisPublisher(addr string) Publisher {
	return &redisPublisher{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (p *redisPublisher) Publish(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		util.Logger.Error("序列化变化事件失败", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		util.Logger.Warn("发布变化事件失败",
			zap.Error(err),
			zap.Int("order_id", event.OrderID),
			zap.String("kind", event.Kind))
	}
}

// NopPublisher 未配置 Redis 时使用的空实现
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
