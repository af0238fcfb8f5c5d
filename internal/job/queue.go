package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"Arya-Agent/pkg/logger"
)

// Handler 处理来自消息队列的作业 ID。
type Handler func(ctx context.Context, jobID string) error

// Producer 负责向队列投递作业。
type Producer interface {
	Publish(ctx context.Context, jobID string) error
	Close() error
}

// Consumer 负责从队列中消费作业。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}

// errQueueDrained 表示队列已关闭且没有剩余消息，工作协程正常退出。
var errQueueDrained = errors.New("queue drained")

// delivery 是取出的一条作业，ack 在 handler 返回后调用，可为空。
type delivery struct {
	jobID string
	ack   func()
}

// fetchFunc 阻塞直到取到下一条作业。ok 为 false 表示本轮没有消息。
type fetchFunc func(ctx context.Context) (d delivery, ok bool, err error)

// runWorkers 是三种队列共用的消费循环。任一协程取消息出错时取消其余协程并返回该错误，
// 否则在 ctx 结束或队列耗尽后返回。handler 的错误只记录日志，作业不会重新入队。
func runWorkers(ctx context.Context, workerCount int, fetch fetchFunc, handler Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		fetchErr error
	)
	for range max(workerCount, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				d, ok, err := fetch(ctx)
				if errors.Is(err, errQueueDrained) {
					return
				}
				if err != nil {
					if ctx.Err() == nil {
						once.Do(func() {
							fetchErr = err
							cancel()
						})
					}
					return
				}
				if !ok {
					continue
				}
				if err := handler(ctx, d.jobID); err != nil {
					logger.L().Warn("作业处理返回错误", slog.String("job_id", d.jobID), slog.Any("error", err))
				}
				if d.ack != nil {
					d.ack()
				}
			}
		}()
	}
	wg.Wait()
	if fetchErr != nil {
		return fetchErr
	}
	return ctx.Err()
}
