package job

import (
	"context"

	xerrors "Arya-Agent/internal/errors"
	"Arya-Agent/internal/response"
)

// Store 抽象了作业状态的持久化接口。
//
// 失败的作业同样保存回复，调用方总能拿到一条可展示的文本。
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Claim(ctx context.Context, id string) (*Job, error)
	MarkSucceeded(ctx context.Context, id string, reply *response.Response) error
	MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, reply *response.Response) error
	List(ctx context.Context, opts ListOptions) ([]*Job, error)
	Stats(ctx context.Context, opts ListOptions) (Stats, error)
	Close() error
}
