// Package pythonbridge 把一次抽取请求交给本地脚本完成，适合离线调试或自托管模型。
package pythonbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"Arya-Agent/internal/llm"
)

// maxStderr 限制错误信息中保留的脚本 stderr 长度。
const maxStderr = 512

// Config 描述脚本的调用方式。
type Config struct {
	// Python 是解释器路径，默认 python3。
	Python string
	// Script 是脚本路径，相对路径以 WorkingDir 为基准。
	Script     string
	WorkingDir string
	// Env 追加到脚本进程环境变量中，形如 KEY=VALUE。
	Env []string
}

// Client 每次 Generate 启动一个脚本进程。
// 脚本从 stdin 读取 {"instructions","input","format"}，向 stdout 写出
// {"content","model"}；写出 {"error"} 表示脚本自身判定失败。
type Client struct {
	python     string
	script     string
	workingDir string
	env        []string
}

// NewClient 创建客户端。
func NewClient(cfg Config) (*Client, error) {
	script := ResolveScriptPath(cfg.WorkingDir, strings.TrimSpace(cfg.Script))
	if script == "" {
		return nil, errors.New("未指定 Python 脚本路径")
	}
	python := strings.TrimSpace(cfg.Python)
	if python == "" {
		python = "python3"
	}
	return &Client{
		python:     python,
		script:     script,
		workingDir: cfg.WorkingDir,
		env:        cfg.Env,
	}, nil
}

type bridgeRequest struct {
	Instructions string     `json:"instructions"`
	Input        string     `json:"input"`
	Format       llm.Format `json:"format"`
}

// Generate 运行脚本并返回其输出的 content。
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if req.Format == "" {
		req.Format = llm.FormatText
	}
	payload, err := json.Marshal(bridgeRequest{Instructions: req.Instructions, Input: req.Input, Format: req.Format})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	command := exec.CommandContext(ctx, c.python, c.script)
	command.Dir = c.workingDir
	command.Stdin = bytes.NewReader(payload)
	if len(c.env) > 0 {
		command.Env = append(os.Environ(), c.env...)
	}
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("执行 Python 脚本失败: %v, stderr=%s", err, truncate(strings.TrimSpace(stderr.String()), maxStderr))
	}

	out := stdout.Bytes()
	if !gjson.ValidBytes(out) {
		return nil, fmt.Errorf("Python 输出不是合法 JSON: %s", truncate(string(out), maxStderr))
	}
	result := gjson.ParseBytes(out)
	if msg := result.Get("error"); msg.Exists() && msg.String() != "" {
		return nil, fmt.Errorf("Python 脚本返回错误: %s", msg.String())
	}
	content := result.Get("content")
	if content.Type != gjson.String || strings.TrimSpace(content.String()) == "" {
		return nil, errors.New("Python 脚本未返回内容")
	}
	return &llm.Response{Content: content.String(), Model: result.Get("model").String()}, nil
}

// ResolveScriptPath 把相对脚本路径拼接到 baseDir 之下。
func ResolveScriptPath(baseDir, script string) string {
	if script == "" {
		return ""
	}
	if filepath.IsAbs(script) || baseDir == "" {
		return script
	}
	return filepath.Join(baseDir, script)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ llm.Client = (*Client)(nil)
