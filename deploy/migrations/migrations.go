// Package migrations 以 embed 方式携带作业存储的 SQL 迁移脚本，文件名前缀即版本号。
package migrations

import "embed"

// Files 暴露所有 SQL 迁移文件。
//
//go:embed *.sql
var Files embed.FS
