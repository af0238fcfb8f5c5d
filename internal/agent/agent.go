package agent

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"Arya-Agent/internal/addressbook"
	"Arya-Agent/internal/asset"
	xerrors "Arya-Agent/internal/errors"
	"Arya-Agent/internal/exchange"
	"Arya-Agent/internal/identity"
	"Arya-Agent/internal/intent"
	"Arya-Agent/internal/media"
	"Arya-Agent/internal/nameservice"
	"Arya-Agent/internal/observability/metrics"
	"Arya-Agent/internal/response"
	"Arya-Agent/pkg/logger"
)

// UnroutedText 是无法匹配任何工作流时的回复。
const UnroutedText = "I can help with token swaps, token prices and Twitch or YouTube creator lookups."

// Message 描述一条待处理的入站消息。
type Message struct {
	ID string `json:"id,omitempty"`
	// Text 是用户最新的消息文本。
	Text string `json:"text"`
	// Action 为空时根据关键词自动路由。
	Action  intent.Action `json:"action,omitempty"`
	Source  string        `json:"source,omitempty"`
	History []intent.Turn `json:"history,omitempty"`
}

// Extractor 把消息转换为意图。
type Extractor interface {
	Extract(ctx context.Context, message string, history []intent.Turn, schema intent.Schema) (intent.Intent, error)
}

// SwapExecutor 按报价执行兑换。
type SwapExecutor interface {
	Execute(ctx context.Context, account exchange.Account, quote exchange.Quote, slippage float64, autoApprove bool) exchange.SwapOutcome
}

// PriceSource 查询资产最新价格。
type PriceSource interface {
	LatestPrice(ctx context.Context, token asset.ID) (exchange.PricePoint, error)
}

// MediaLookup 在指定平台上查询创作者。
type MediaLookup interface {
	Lookup(ctx context.Context, platform intent.Platform, handle string) (*media.Summary, error)
}

// Resolver 解析 starknet.id 域名。
type Resolver interface {
	ResolveDetailed(ctx context.Context, name string) (string, nameservice.Outcome)
}

// Agent 按顺序编排意图抽取、外部调用与回复合成，是系统的业务核心。
type Agent struct {
	extractor   Extractor
	book        *addressbook.Book
	quotes      exchange.QuoteSource
	executor    SwapExecutor
	account     exchange.Account
	prices      PriceSource
	media       MediaLookup
	resolver    Resolver
	slippage    float64
	autoApprove bool
	llmTimeout  time.Duration
	tracer      trace.Tracer
	log         *slog.Logger
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithAddressBook 指定作为抽取参考资料的资产地址表。
func WithAddressBook(book *addressbook.Book) Option {
	return func(a *Agent) {
		if book != nil {
			a.book = book
		}
	}
}

// WithSwap 配置兑换工作流所需的报价、执行器与签名账户。
func WithSwap(quotes exchange.QuoteSource, executor SwapExecutor, account exchange.Account) Option {
	return func(a *Agent) {
		a.quotes = quotes
		a.executor = executor
		a.account = account
	}
}

// WithPrices 配置价格工作流。
func WithPrices(prices PriceSource) Option {
	return func(a *Agent) {
		a.prices = prices
	}
}

// WithMedia 配置社交身份查询工作流。
func WithMedia(lookup MediaLookup, resolver Resolver) Option {
	return func(a *Agent) {
		a.media = lookup
		a.resolver = resolver
	}
}

// WithSwapDefaults 覆盖默认滑点与自动授权开关。
func WithSwapDefaults(slippage float64, autoApprove bool) Option {
	return func(a *Agent) {
		a.slippage = slippage
		a.autoApprove = autoApprove
	}
}

// WithLLMTimeout 设置调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout <= 0 {
			a.llmTimeout = 0
			return
		}
		a.llmTimeout = timeout
	}
}

// WithTracer 指定链路追踪器。
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Agent) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// New 创建一个 Agent。
func New(extractor Extractor, opts ...Option) *Agent {
	ag := &Agent{
		extractor:   extractor,
		book:        addressbook.Default(),
		slippage:    exchange.DefaultSlippage,
		autoApprove: exchange.DefaultAutoApprove,
		tracer:      otel.Tracer("Arya-Agent/internal/agent"),
		log:         logger.Named("agent"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	return ag
}

// Handle 处理一条消息并返回回复。
//
// 只要回复可以生成，返回的 Response 就不为空；工作流失败时同时返回带错误码的错误，
// 供任务层记录与告警。不会向调用方暴露未分类的底层错误。
func (a *Agent) Handle(ctx context.Context, msg Message) (*response.Response, error) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "pipeline", trace.WithAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.source", msg.Source),
	))
	defer span.End()

	action := msg.Action
	if action == "" {
		routed, ok := intent.Route(msg.Text)
		if !ok {
			err := xerrors.New(xerrors.CodeInvalidArgument, "消息未匹配任何工作流")
			a.finish(span, "unrouted", start, err)
			return &response.Response{Text: UnroutedText}, err
		}
		action = routed
	}
	span.SetAttributes(attribute.String("workflow", string(action)))

	result, err := a.run(ctx, msg, action)
	if err != nil {
		if _, coded := xerrors.From(err); !coded {
			err = xerrors.Wrap(xerrors.CodeUnknown, err, "")
		}
	}

	_, synth := a.tracer.Start(ctx, "synthesize")
	reply := response.Synthesize(result, response.OptionsForSource(msg.Source))
	synth.End()

	a.finish(span, string(action), start, err)
	attrs := []any{
		slog.String("message_id", msg.ID),
		slog.String("workflow", string(action)),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		a.log.Warn("消息处理失败", append(attrs, slog.String("code", string(xerrors.CodeOf(err))), slog.Any("error", err))...)
	} else {
		a.log.Info("消息处理完成", attrs...)
	}
	return &reply, err
}

func (a *Agent) run(ctx context.Context, msg Message, action intent.Action) (response.Result, error) {
	if a.extractor == nil {
		return response.FailureResult{Action: action, Reply: xerrors.ReplyOf(nil)},
			xerrors.New(xerrors.CodeInitializationFailure, "未配置意图抽取器")
	}

	grounding := ""
	if action == intent.ActionSwap || action == intent.ActionPrice {
		grounding = a.book.Render()
	}
	schema, err := intent.SchemaFor(action, grounding)
	if err != nil {
		return response.FailureResult{Action: action}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "")
	}

	extracted, err := a.extract(ctx, msg, schema)
	if err != nil {
		failure := response.FailureResult{Action: action}
		if xerrors.CodeOf(err) == xerrors.CodeTimeout {
			failure.Reply = xerrors.ReplyOf(err)
		}
		return failure, err
	}

	switch it := extracted.(type) {
	case intent.SwapIntent:
		return a.swap(ctx, it)
	case intent.PriceIntent:
		return a.price(ctx, it)
	case intent.SocialLookupIntent:
		return a.lookup(ctx, action, it)
	default:
		return response.FailureResult{Action: action}, xerrors.New(xerrors.CodeUnknown, "unexpected intent variant")
	}
}

func (a *Agent) extract(ctx context.Context, msg Message, schema intent.Schema) (intent.Intent, error) {
	ctx, span := a.tracer.Start(ctx, "extract")
	defer span.End()

	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}
	extracted, err := a.extractor.Extract(ctx, msg.Text, msg.History, schema)
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) && xerrors.CodeOf(err) != xerrors.CodeTimeout {
			err = xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("intent", extracted.String()))
	return extracted, nil
}

func (a *Agent) swap(ctx context.Context, it intent.SwapIntent) (response.Result, error) {
	if a.quotes == nil || a.executor == nil || a.account == nil {
		return response.FailureResult{Action: intent.ActionSwap, Reply: xerrors.ReplyOf(nil)},
			xerrors.New(xerrors.CodeInitializationFailure, "兑换工作流未配置")
	}

	quoteCtx, span := a.tracer.Start(ctx, "quote")
	quotes, err := a.quotes.Quotes(quoteCtx, it.SellAsset, it.BuyAsset, it.SellAmount)
	if err != nil {
		recordError(span, err)
		span.End()
		failure := response.FailureResult{Action: intent.ActionSwap}
		if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
			failure.Reply = xerrors.ReplyOf(err)
		}
		return failure, err
	}
	span.SetAttributes(attribute.Int("quotes", len(quotes)))
	span.End()
	if len(quotes) == 0 {
		return response.NoRouteResult{}, xerrors.New(xerrors.CodeNoRoute, "")
	}

	execCtx, span := a.tracer.Start(ctx, "execute", trace.WithAttributes(attribute.String("quote.id", quotes[0].ID)))
	defer span.End()
	outcome := a.executor.Execute(execCtx, a.account, quotes[0], a.slippage, a.autoApprove)
	span.SetAttributes(attribute.String("swap.state", string(outcome.State)))
	if !outcome.Success {
		code := outcome.Code
		if code == "" {
			code = xerrors.CodeSubmissionFailure
		}
		err := xerrors.New(code, outcome.ErrorDetail, xerrors.WithMetadata("state", string(outcome.State)))
		recordError(span, err)
		return response.SwapResult{Outcome: outcome}, err
	}
	return response.SwapResult{Outcome: outcome}, nil
}

func (a *Agent) price(ctx context.Context, it intent.PriceIntent) (response.Result, error) {
	if a.prices == nil {
		return response.FailureResult{Action: intent.ActionPrice}, xerrors.New(xerrors.CodeInitializationFailure, "价格工作流未配置")
	}
	ctx, span := a.tracer.Start(ctx, "price")
	defer span.End()
	point, err := a.prices.LatestPrice(ctx, it.Asset)
	if err != nil {
		recordError(span, err)
		return response.FailureResult{Action: intent.ActionPrice, Reply: xerrors.ReplyOf(err)}, err
	}
	return response.PriceResult{Asset: it.Asset, Price: point}, nil
}

func (a *Agent) lookup(ctx context.Context, action intent.Action, it intent.SocialLookupIntent) (response.Result, error) {
	if a.media == nil {
		return response.FailureResult{Action: action}, xerrors.New(xerrors.CodeInitializationFailure, "社交查询工作流未配置")
	}
	lookupCtx, span := a.tracer.Start(ctx, "lookup", trace.WithAttributes(attribute.String("platform", string(it.Platform))))
	summary, err := a.media.Lookup(lookupCtx, it.Platform, it.Handle)
	if err != nil {
		recordError(span, err)
		span.End()
		return response.FailureResult{Action: action}, err
	}
	span.End()

	claim := identity.Parse(summary.Bio)
	resolved := ""
	if a.resolver != nil {
		resolveCtx, span := a.tracer.Start(ctx, "resolve")
		var outcome nameservice.Outcome
		resolved, outcome = a.resolver.ResolveDetailed(resolveCtx, claim.Name)
		span.SetAttributes(attribute.String("resolution.outcome", string(outcome)))
		span.End()
	}
	return response.IdentityResult{Summary: summary, Claim: claim, Resolved: resolved}, nil
}

func (a *Agent) finish(span trace.Span, workflow string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(xerrors.CodeOf(err))
		recordError(span, err)
	}
	metrics.ObservePipeline(workflow, outcome, time.Since(start))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(xerrors.CodeOf(err)))
}
