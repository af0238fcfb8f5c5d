package job

import (
	stdErrors "errors"

	xerrors "Arya-Agent/internal/errors"
	"Arya-Agent/internal/intent"
	"Arya-Agent/internal/response"
)

// Status 表示消息作业在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// MaxAttempts 是每个作业允许的最大执行次数。兑换不可重放，因此作业只会被领取一次。
const MaxAttempts = 1

// Job 记录一条入站消息的处理状态与最终回复。
//
// Context 只在本次流水线运行中作为抽取参考，不会被后续作业读取。
type Job struct {
	ID          string             `json:"id"`
	Text        string             `json:"text"`
	Action      intent.Action      `json:"action,omitempty"`
	Source      string             `json:"source,omitempty"`
	Context     []intent.Turn      `json:"context,omitempty"`
	Status      Status             `json:"status"`
	Attempts    int                `json:"attempts"`
	MaxAttempts int                `json:"max_attempts"`
	ErrorCode   string             `json:"error_code,omitempty"`
	LastError   string             `json:"last_error,omitempty"`
	Reply       *response.Response `json:"reply,omitempty"`
	CreatedAt   int64              `json:"created_at"`
	UpdatedAt   int64              `json:"updated_at"`
}

// Done 判断作业是否已经结束。
func (j *Job) Done() bool {
	return j != nil && (j.Status == StatusSucceeded || j.Status == StatusFailed)
}

var (
	// ErrJobNotFound 表示指定的作业不存在。
	ErrJobNotFound = xerrors.New(CodeJobNotFound, "job not found")
	// ErrJobConflict 表示作业在当前状态下无法执行所请求的操作。
	ErrJobConflict = xerrors.New(CodeJobConflict, "job conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrJobCompleted 表示作业已经结束。
	ErrJobCompleted = xerrors.New(CodeJobCompleted, "job already completed", xerrors.WithSeverity(xerrors.SeverityInfo))
	// ErrJobExhausted 表示作业的执行次数已经用尽。
	ErrJobExhausted = xerrors.New(CodeJobExhausted, "job attempts exhausted", xerrors.WithSeverity(xerrors.SeverityWarning))
)

const (
	CodeJobNotFound   xerrors.Code = "JOB_NOT_FOUND"
	CodeJobConflict   xerrors.Code = "JOB_CONFLICT"
	CodeJobCompleted  xerrors.Code = "JOB_COMPLETED"
	CodeJobExhausted  xerrors.Code = "JOB_ATTEMPTS_EXHAUSTED"
	CodeJobValidation xerrors.Code = "JOB_VALIDATION_FAILED"
	CodeJobPublish    xerrors.Code = "JOB_PUBLISH_FAILED"
	CodeJobProcessing xerrors.Code = "JOB_PROCESSING_FAILED"
)

func init() {
	xerrors.Register(CodeJobNotFound, xerrors.Attributes{
		Message:  "job not found",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeJobConflict, xerrors.Attributes{
		Message:  "job conflict",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeJobCompleted, xerrors.Attributes{
		Message:  "job already completed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeJobExhausted, xerrors.Attributes{
		Message:  "job attempts exhausted",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeJobValidation, xerrors.Attributes{
		Message:  "job validation failed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeJobPublish, xerrors.Attributes{
		Message:   "failed to publish job",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeJobProcessing, xerrors.Attributes{
		Message:  "job processing failed",
		Severity: xerrors.SeverityWarning,
		Alert:    true,
		Reply:    "Something went wrong, please try again.",
	})
}

// IsSkippable 判断领取失败是否只意味着作业无需再处理。
func IsSkippable(err error) bool {
	return stdErrors.Is(err, ErrJobNotFound) ||
		stdErrors.Is(err, ErrJobCompleted) ||
		stdErrors.Is(err, ErrJobExhausted) ||
		stdErrors.Is(err, ErrJobConflict)
}

// IsValidStatus 检查给定的作业状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

func cloneJob(job *Job) *Job {
	clone := *job
	if job.Reply != nil {
		reply := *job.Reply
		if job.Reply.Attachment != nil {
			attachment := *job.Reply.Attachment
			reply.Attachment = &attachment
		}
		clone.Reply = &reply
	}
	if job.Context != nil {
		clone.Context = append([]intent.Turn(nil), job.Context...)
	}
	return &clone
}
