package errors

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// Error 是带错误码的统一错误类型。错误码决定默认的严重程度、告警与用户文案，
// 单个错误可以通过 Option 覆盖这些默认值。
type Error struct {
	code     Code
	message  string
	cause    error
	metadata map[string]string
	override overrides
}

// overrides 记录相对错误码注册属性的覆盖项，nil 表示沿用注册值。
type overrides struct {
	retryable *bool
	alert     *bool
	severity  *Severity
	reply     *string
}

// Option 定义可选配置。
type Option func(*Error)

// WithMetadata 附加一对键值，告警与审计日志会原样携带。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithRetryable 覆盖错误码默认的可重试属性。
func WithRetryable(retryable bool) Option {
	return func(e *Error) { e.override.retryable = &retryable }
}

// WithAlert 覆盖错误码默认的告警属性。
func WithAlert(alert bool) Option {
	return func(e *Error) { e.override.alert = &alert }
}

// WithSeverity 覆盖默认严重程度。
func WithSeverity(sev Severity) Option {
	return func(e *Error) { e.override.severity = &sev }
}

// WithReply 为单个错误指定用户文案，例如带上交易失败原因。
func WithReply(reply string) Option {
	return func(e *Error) {
		if reply != "" {
			e.override.reply = &reply
		}
	}
}

// New 创建错误，message 为空时使用错误码注册的描述。
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap 在已有错误外包裹错误码。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 按错误码比较，使 errors.Is(err, New(code, "")) 成立。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if e == nil || !ok || t == nil {
		return false
	}
	return e.code == t.code
}

// Code 返回错误码。
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message 返回不含底层原因的描述。
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata 返回附加信息的副本。
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	return maps.Clone(e.metadata)
}

func (e *Error) attributes() Attributes {
	attr := AttributesOf(e.code)
	if o := e.override; o.retryable != nil {
		attr.Retryable = *o.retryable
	}
	if o := e.override; o.alert != nil {
		attr.Alert = *o.alert
	}
	if o := e.override; o.severity != nil {
		attr.Severity = *o.severity
	}
	if o := e.override; o.reply != nil {
		attr.Reply = *o.reply
	}
	return attr
}

// Retryable 判断是否可重试。
func (e *Error) Retryable() bool {
	return e != nil && e.attributes().Retryable
}

// ShouldAlert 判断是否需要告警。
func (e *Error) ShouldAlert() bool {
	return e != nil && e.attributes().Alert
}

// Severity 返回错误严重程度。
func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	return e.attributes().Severity
}

// Reply 返回面向用户的文案，可能为空。
func (e *Error) Reply() string {
	if e == nil {
		return ""
	}
	return e.attributes().Reply
}

// LogValue 让 slog 以分组形式输出错误码、严重程度与附加信息。
func (e *Error) LogValue() slog.Value {
	if e == nil {
		return slog.StringValue("")
	}
	attrs := []slog.Attr{
		slog.String("code", string(e.code)),
		slog.String("message", e.message),
		slog.String("severity", string(e.Severity())),
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	for _, key := range slices.Sorted(maps.Keys(e.metadata)) {
		attrs = append(attrs, slog.String("meta."+key, e.metadata[key]))
	}
	return slog.GroupValue(attrs...)
}

// From 从错误链中取出第一个 *Error。
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回错误码，未分类的错误视为 UNKNOWN。
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// RetryableError 判断任意 error 是否可重试。
func RetryableError(err error) bool {
	e, ok := From(err)
	return ok && e.Retryable()
}

// ShouldAlert 判断是否需要触发告警。
func ShouldAlert(err error) bool {
	e, ok := From(err)
	return ok && e.ShouldAlert()
}

// SeverityOf 返回错误严重程度。
func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}

// ReplyOf 返回用户文案，依次取错误自身、错误码注册值与 UNKNOWN 的文案。
func ReplyOf(err error) string {
	if e, ok := From(err); ok {
		if reply := e.Reply(); reply != "" {
			return reply
		}
	}
	return AttributesOf(CodeUnknown).Reply
}
