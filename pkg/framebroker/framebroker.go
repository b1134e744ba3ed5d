// Package framebroker 封装 RabbitMQ 上的按源帧队列
//
// 每路源一个持久化点对点队列，队列有长度上限，溢出时丢弃最旧消息，
// 消费端 prefetch=1 且取到即确认，属于至少一次投递，下游写入需要幂等。
package framebroker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueName 返回源对应的队列名
func QueueName(sourceID string) string {
	return "frame_queue_" + sourceID
}

type Config struct {
	URL         string
	QueueMaxLen int64         // 队列长度上限，溢出丢弃队头
	MessageTTL  time.Duration // 消息过期时间，无人消费的旧帧自行过期
	Heartbeat   time.Duration
}

// Client 帧队列客户端
// 连接断开后在下一次调用时透明重连，调用方不能假设两次调用共享同一条连接
type Client struct {
	cfg Config

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]struct{}
}

func NewClient(cfg Config) *Client {
	if cfg.QueueMaxLen <= 0 {
		cfg.QueueMaxLen = 1000
	}
	if cfg.MessageTTL <= 0 {
		cfg.MessageTTL = time.Minute
	}
	return &Client{cfg: cfg, declared: make(map[string]struct{})}
}

// channel 返回可用信道，必要时重连
func (c *Client) channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil && !c.ch.IsClosed() {
		return c.ch, nil
	}
	c.closeLocked()

	conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{Heartbeat: c.cfg.Heartbeat})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	// prefetch=1，单个慢消费者最多占用一条未确认消息
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	c.conn = conn
	c.ch = ch
	c.declared = make(map[string]struct{})
	return ch, nil
}

// declare 懒声明队列，同一连接内只声明一次
func (c *Client) declare(ch *amqp.Channel, queue string) error {
	c.mu.Lock()
	_, ok := c.declared[queue]
	c.mu.Unlock()
	if ok {
		return nil
	}

	_, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-max-length": c.cfg.QueueMaxLen,
		"x-overflow":   "drop-head",
	})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	c.mu.Lock()
	c.declared[queue] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Publish 发布一帧到指定队列
// 队列满时由 broker 丢弃最旧消息，发布方不会被拒绝
func (c *Client) Publish(ctx context.Context, queue string, body []byte) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}
	if err := c.declare(ch, queue); err != nil {
		c.drop()
		return err
	}
	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Expiration:   strconv.FormatInt(c.cfg.MessageTTL.Milliseconds(), 10),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		c.drop()
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

// TakeOne 从队列取一条消息，取到即确认
// 队列为空返回 (nil, false, nil)，由调用方决定轮询节奏
func (c *Client) TakeOne(ctx context.Context, queue string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	ch, err := c.channel()
	if err != nil {
		return nil, false, err
	}
	if err := c.declare(ch, queue); err != nil {
		c.drop()
		return nil, false, err
	}
	msg, ok, err := ch.Get(queue, true)
	if err != nil {
		c.drop()
		return nil, false, fmt.Errorf("get from %s: %w", queue, err)
	}
	if !ok {
		return nil, false, nil
	}
	return msg.Body, true, nil
}

// drop 丢弃故障连接，下一次调用重连
func (c *Client) drop() {
	c.mu.Lock()
	c.closeLocked()
	c.mu.Unlock()
}

func (c *Client) closeLocked() {
	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
