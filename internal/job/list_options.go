package job

import (
	"slices"
	"strings"
	"time"

	"Arya-Agent/internal/intent"
)

// SortOrder 决定列表按更新时间的排序方向。
type SortOrder int

const (
	SortByUpdatedDesc SortOrder = iota
	SortByUpdatedAsc
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ListOptions 是存储层列表查询的过滤条件，UpdatedGTE 为 Unix 秒。
type ListOptions struct {
	Limit      int
	Offset     int
	Statuses   []Status
	Actions    []intent.Action
	Source     string
	UpdatedGTE int64
	Order      SortOrder
	Query      string
}

func (opts *ListOptions) applyDefaults() {
	switch {
	case opts.Limit <= 0:
		opts.Limit = defaultListLimit
	case opts.Limit > maxListLimit:
		opts.Limit = maxListLimit
	}
	opts.Offset = max(opts.Offset, 0)
	opts.Statuses = normalizeStatuses(opts.Statuses)
	if opts.Order != SortByUpdatedAsc {
		opts.Order = SortByUpdatedDesc
	}
	opts.Source = strings.ToLower(strings.TrimSpace(opts.Source))
	opts.Query = strings.TrimSpace(opts.Query)
}

// ListOption 修改列表查询条件。
type ListOption func(*ListOptions)

// WithLimit 限制返回条数，超出上限时按上限截断。
func WithLimit(limit int) ListOption {
	return func(opts *ListOptions) {
		opts.Limit = limit
	}
}

// WithOffset 跳过前 n 条。
func WithOffset(offset int) ListOption {
	return func(opts *ListOptions) {
		opts.Offset = offset
	}
}

// WithStatuses 按状态过滤，未知状态会被忽略。
func WithStatuses(statuses ...Status) ListOption {
	return func(opts *ListOptions) {
		opts.Statuses = append(opts.Statuses[:0], statuses...)
	}
}

// WithActions 按提交时指定的工作流过滤。
func WithActions(actions ...intent.Action) ListOption {
	return func(opts *ListOptions) {
		opts.Actions = append(opts.Actions[:0], actions...)
	}
}

// WithSource 按消息来源过滤，不区分大小写。
func WithSource(source string) ListOption {
	return func(opts *ListOptions) {
		opts.Source = source
	}
}

// WithUpdatedSince 只保留 ts 之后更新过的作业。
func WithUpdatedSince(ts time.Time) ListOption {
	return func(opts *ListOptions) {
		if ts.IsZero() {
			opts.UpdatedGTE = 0
			return
		}
		opts.UpdatedGTE = ts.Unix()
	}
}

func WithSortOrder(order SortOrder) ListOption {
	return func(opts *ListOptions) {
		opts.Order = order
	}
}

// WithQuery 在 ID、消息正文、错误与回复中做不区分大小写的子串匹配。
func WithQuery(query string) ListOption {
	return func(opts *ListOptions) {
		opts.Query = query
	}
}

func buildListOptions(opts []ListOption) ListOptions {
	var options ListOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	options.applyDefaults()
	return options
}

// normalizeStatuses 去重并丢弃未知状态，结果为空时返回 nil 表示不过滤。
func normalizeStatuses(input []Status) []Status {
	var result []Status
	for _, status := range input {
		if IsValidStatus(status) && !slices.Contains(result, status) {
			result = append(result, status)
		}
	}
	return result
}

func (opts ListOptions) matches(job *Job) bool {
	switch {
	case len(opts.Statuses) > 0 && !slices.Contains(opts.Statuses, job.Status):
		return false
	case len(opts.Actions) > 0 && !slices.Contains(opts.Actions, job.Action):
		return false
	case opts.Source != "" && !strings.EqualFold(job.Source, opts.Source):
		return false
	case opts.UpdatedGTE > 0 && job.UpdatedAt < opts.UpdatedGTE:
		return false
	case opts.Query == "":
		return true
	}
	return slices.ContainsFunc(searchFields(job), func(field string) bool {
		return strings.Contains(strings.ToLower(field), strings.ToLower(opts.Query))
	})
}

func searchFields(job *Job) []string {
	fields := []string{job.ID, job.Text, job.LastError}
	if job.Reply != nil {
		fields = append(fields, job.Reply.Text)
	}
	return fields
}
