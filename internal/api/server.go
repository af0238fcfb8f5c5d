package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Arya-Agent/internal/agent"
	"Arya-Agent/internal/auth"
	xerrors "Arya-Agent/internal/errors"
	"Arya-Agent/internal/intent"
	"Arya-Agent/internal/job"
	"Arya-Agent/internal/observability/metrics"
	"Arya-Agent/pkg/logger"
)

const maxBodyBytes = 64 << 10

// Server 暴露消息提交与作业查询接口。
type Server struct {
	addr        string
	jobs        *job.Service
	auth        *auth.Service
	waitTimeout time.Duration
	pollEvery   time.Duration
	log         *slog.Logger
}

// Option 定义可选配置。
type Option func(*Server)

// WithAuth 启用 API Key 认证。
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) {
		s.auth = svc
	}
}

// WithWaitTimeout 设置 ?wait=1 请求的最长等待时间。
func WithWaitTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.waitTimeout = timeout
		}
	}
}

// WithPollInterval 设置等待作业完成时的轮询间隔。
func WithPollInterval(interval time.Duration) Option {
	return func(s *Server) {
		if interval > 0 {
			s.pollEvery = interval
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, jobs *job.Service, opts ...Option) *Server {
	s := &Server{
		addr:        addr,
		jobs:        jobs,
		waitTimeout: 60 * time.Second,
		pollEvery:   200 * time.Millisecond,
		log:         logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回完整的路由，包含认证与指标中间件。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/messages", s.handleSubmit)
	mux.HandleFunc("GET /api/v1/messages", s.handleList)
	mux.HandleFunc("GET /api/v1/messages/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/messages/{id}", s.handleDetail)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var handler http.Handler = mux
	if s.auth != nil {
		handler = s.auth.Middleware("/healthz", "/metrics")(handler)
	}
	return withMetrics(mux, handler)
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("API 服务已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type submitRequest struct {
	ID      string        `json:"id,omitempty"`
	Text    string        `json:"text"`
	Action  string        `json:"action,omitempty"`
	Source  string        `json:"source,omitempty"`
	Context []intent.Turn `json:"context,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = auth.SubjectName(r.Context())
	}
	submitted, err := s.jobs.Submit(r.Context(), agent.Message{
		ID:      req.ID,
		Text:    req.Text,
		Action:  intent.Action(req.Action),
		Source:  source,
		History: req.Context,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if !wantsWait(r) || submitted.Done() {
		status := http.StatusAccepted
		if submitted.Done() {
			status = http.StatusOK
		}
		writeJSON(w, status, submitted)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout)
	defer cancel()
	finished, err := s.jobs.WaitUntilCompleted(ctx, submitted.ID, s.pollEvery)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && finished != nil {
			writeJSON(w, http.StatusAccepted, finished)
			return
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, finished)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	jobs, err := s.jobs.List(r.Context(), opts...)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": jobs})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stats, err := s.jobs.Stats(r.Context(), opts...)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, xerrors.New(xerrors.CodeInvalidArgument, "缺少作业 ID"))
		return
	}
	found, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseListOptions(r *http.Request) ([]job.ListOption, error) {
	query := r.URL.Query()
	var opts []job.ListOption
	if raw := query.Get("status"); raw != "" {
		var statuses []job.Status
		for _, part := range strings.Split(raw, ",") {
			status := job.Status(strings.ToLower(strings.TrimSpace(part)))
			if !job.IsValidStatus(status) {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "未知的作业状态", xerrors.WithMetadata("status", part))
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, job.WithStatuses(statuses...))
	}
	if raw := query.Get("action"); raw != "" {
		action, err := intent.ParseAction(raw)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "未知的 action")
		}
		opts = append(opts, job.WithActions(action))
	}
	if raw := query.Get("source"); raw != "" {
		opts = append(opts, job.WithSource(raw))
	}
	for _, name := range []string{"limit", "offset"} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, name+" 必须是非负整数")
		}
		if name == "limit" {
			opts = append(opts, job.WithLimit(value))
		} else {
			opts = append(opts, job.WithOffset(value))
		}
	}
	if raw := query.Get("since"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "since 必须是 Unix 秒")
		}
		opts = append(opts, job.WithUpdatedSince(time.Unix(ts, 0)))
	}
	if query.Get("order") == "asc" {
		opts = append(opts, job.WithSortOrder(job.SortByUpdatedAsc))
	}
	if raw := query.Get("q"); raw != "" {
		opts = append(opts, job.WithQuery(raw))
	}
	return opts, nil
}

func wantsWait(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("wait")) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func statusFor(err error) int {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument, job.CodeJobValidation:
		return http.StatusBadRequest
	case job.CodeJobNotFound, xerrors.CodeNotFound:
		return http.StatusNotFound
	case job.CodeJobConflict, xerrors.CodeConflict:
		return http.StatusConflict
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Error: err.Error(), Code: string(xerrors.CodeOf(err))}
	if status >= http.StatusInternalServerError {
		logger.L().Error("API 请求失败", slog.Any("error", err), slog.Int("status", status))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withMetrics 以路由模式作为 handler 标签记录请求指标，避免把作业 ID 写进标签。
func withMetrics(mux *http.ServeMux, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.ObserveHTTPRequest(pattern, r.Method, rec.status, time.Since(start))
	})
}
