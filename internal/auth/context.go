package auth

import "context"

type subjectKey struct{}

// WithSubject 把通过认证的调用方挂到请求上下文。
func WithSubject(ctx context.Context, subject *Subject) context.Context {
	if subject == nil {
		return ctx
	}
	return context.WithValue(ctx, subjectKey{}, *subject)
}

// SubjectFromContext 返回调用方副本；认证关闭或未认证时为 nil。
func SubjectFromContext(ctx context.Context) *Subject {
	if ctx == nil {
		return nil
	}
	subject, ok := ctx.Value(subjectKey{}).(Subject)
	if !ok {
		return nil
	}
	return &subject
}

// SubjectName 返回调用方对应的密钥名称，消息未声明来源时用作默认来源。
func SubjectName(ctx context.Context) string {
	if subject := SubjectFromContext(ctx); subject != nil {
		return subject.Name
	}
	return ""
}
