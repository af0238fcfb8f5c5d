package errors

import "sync"

// Code 表示系统内的统一错误码。
type Code string

// Severity 描述错误的严重程度，用于告警和审计。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// 基础设施错误码。
const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodeQueueFailure          Code = "QUEUE_FAILURE"
	CodeTimeout               Code = "TIMEOUT"
)

// 流水线业务错误码，对应意图抽取、外部编排与回复合成各阶段的失败分类。
const (
	CodeExtractionFailure Code = "EXTRACTION_FAILURE"
	CodeQuoteFailure      Code = "QUOTE_FAILURE"
	CodeNoRoute           Code = "NO_ROUTE"
	CodeApprovalFailure   Code = "APPROVAL_FAILURE"
	CodeSubmissionFailure Code = "SUBMISSION_FAILURE"
	CodeSlippageExceeded  Code = "SLIPPAGE_EXCEEDED"
	CodeQuoteExpired      Code = "QUOTE_EXPIRED"
	CodePriceFailure      Code = "PRICE_FAILURE"
	CodeLookupFailure     Code = "LOOKUP_FAILURE"
	CodeResolutionMiss    Code = "RESOLUTION_MISS"
)

// Attributes 为错误码提供默认行为。
//
// Reply 是面向终端用户的兜底文案，流水线在无法给出更具体回复时使用。
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
	Alert     bool
	Reply     string
}

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:               {Message: "unknown error", Severity: SeverityCritical, Alert: true, Reply: "Something went wrong, please try again."},
		CodeInvalidArgument:       {Message: "invalid argument", Severity: SeverityInfo},
		CodeNotFound:              {Message: "resource not found", Severity: SeverityInfo},
		CodeConflict:              {Message: "resource conflict", Severity: SeverityWarning},
		CodeInitializationFailure: {Message: "service not initialized", Severity: SeverityWarning, Retryable: true, Alert: true},
		CodeStorageFailure:        {Message: "storage failure", Severity: SeverityCritical, Retryable: true, Alert: true},
		CodeQueueFailure:          {Message: "queue failure", Severity: SeverityCritical, Retryable: true, Alert: true},
		CodeTimeout:               {Message: "operation timed out", Severity: SeverityWarning, Retryable: true, Alert: true, Reply: "The request timed out, please try again."},

		CodeExtractionFailure: {Message: "intent extraction failed", Severity: SeverityInfo, Reply: "I could not understand that request, please try again."},
		CodeQuoteFailure:      {Message: "quote request failed", Severity: SeverityWarning, Alert: true, Reply: "Unable to fetch a swap quote right now, please try again."},
		CodeNoRoute:           {Message: "no swap route", Severity: SeverityInfo, Reply: "No swap route found for this pair, please try again."},
		CodeApprovalFailure:   {Message: "token approval failed", Severity: SeverityWarning, Alert: true},
		CodeSubmissionFailure: {Message: "swap submission failed", Severity: SeverityCritical, Alert: true},
		CodeSlippageExceeded:  {Message: "slippage bound cannot be honoured", Severity: SeverityInfo},
		CodeQuoteExpired:      {Message: "quote expired", Severity: SeverityInfo},
		CodePriceFailure:      {Message: "price lookup failed", Severity: SeverityWarning, Reply: "Unable to fetch the token price right now, please try again."},
		CodeLookupFailure:     {Message: "profile lookup failed", Severity: SeverityInfo, Reply: "No matching profile was found, please try again."},
		CodeResolutionMiss:    {Message: "name did not resolve", Severity: SeverityInfo},
	}
)

// Register 允许业务模块在初始化阶段注册新的错误码描述。
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf 返回错误码对应的属性。若未注册则返回 UNKNOWN 的属性。
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}
