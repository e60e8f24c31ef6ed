// Package kafka 提供了对话记录异步落库所用的生产者与消费者。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"satyam-ai-go/internal/config"
	"satyam-ai-go/pkg/log"
	"satyam-ai-go/pkg/tasks"
)

// 同一任务失败达到该次数后提交 offset，不再重试。
const maxTaskAttempts = 3

// TaskProcessor 处理一条对话落库任务，与具体的存储实现解耦。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.ChatPersistTask) error
}

// Producer 把对话落库任务写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	log.Infof("[Kafka] 生产者初始化, topic: %s", cfg.Topic)
	return &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}}
}

// Record 发送一个对话落库任务，以会话 ID 作为消息 key 保证同一会话有序。
func (p *Producer) Record(ctx context.Context, task tasks.ChatPersistTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", task.SessionID)),
		Value: taskBytes,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer 消费对话落库任务，失败次数记录在 Redis 中。
type Consumer struct {
	processor  TaskProcessor
	rdb        *redis.Client
	retryDelay time.Duration
}

func NewConsumer(processor TaskProcessor, rdb *redis.Client) *Consumer {
	return &Consumer{processor: processor, rdb: rdb, retryDelay: time.Second}
}

// Run 阻塞消费直到 ctx 取消或读取失败。
func (c *Consumer) Run(ctx context.Context, cfg config.KafkaConfig) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("[Kafka] 关闭消费者失败: %v", err)
		}
	}()

	log.Infof("[Kafka] 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("[Kafka] 消费者已停止")
			} else {
				log.Error("[Kafka] 从 Kafka 读取消息失败", err)
			}
			return
		}
		c.handle(ctx, r, m)
	}
}

func attemptsKey(taskID string) string {
	return fmt.Sprintf("kafka:attempts:%s", taskID)
}

func (c *Consumer) handle(ctx context.Context, r committer, m kafka.Message) {
	var task tasks.ChatPersistTask
	if err := json.Unmarshal(m.Value, &task); err != nil {
		log.Errorf("[Kafka] 无法解析消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		c.commit(ctx, r, m)
		return
	}

	// 失败的任务在当前消息上原地重试：提交后续消息会越过未提交的 offset。
	err := retry.Do(
		func() error {
			err := c.processor.Process(ctx, task)
			if err == nil {
				return nil
			}
			attempts := c.recordFailure(ctx, task.TaskID)
			log.Errorf("[Kafka] 对话落库失败 (%d/%d): task=%s, session=%d, error: %v",
				attempts, maxTaskAttempts, task.TaskID, task.SessionID, err)
			if attempts >= maxTaskAttempts {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(maxTaskAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil && ctx.Err() != nil {
		// 消费者正在停止，不提交 offset，重启后重新投递
		return
	}
	if err != nil {
		log.Errorf("[Kafka] 任务多次失败(>=%d)，提交 offset 终止重试: task=%s", maxTaskAttempts, task.TaskID)
	} else {
		_ = c.rdb.Del(ctx, attemptsKey(task.TaskID)).Err()
	}
	c.commit(ctx, r, m)
}

// recordFailure 递增任务的失败次数并返回累计值。计数保存在 Redis 中，
// 进程重启后重新投递的任务会接着之前的次数计算。Redis 不可用时返回 1。
func (c *Consumer) recordFailure(ctx context.Context, taskID string) int {
	attempts, err := c.rdb.Incr(ctx, attemptsKey(taskID)).Result()
	if err != nil {
		log.Warnf("[Kafka] 记录失败次数失败: task=%s, error: %v", taskID, err)
		return 1
	}
	_ = c.rdb.Expire(ctx, attemptsKey(taskID), 24*time.Hour).Err()
	return int(attempts)
}

func (c *Consumer) commit(ctx context.Context, r committer, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("[Kafka] 提交消息 offset 失败: %v", err)
	}
}
