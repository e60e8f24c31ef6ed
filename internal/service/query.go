// Package service 实现法律问答的检索、改写与仲裁流程。
package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyQuery 表示问题为空或只有空白。
var ErrEmptyQuery = errors.New("query must not be empty")

// NormalizeQuery 去掉首尾空白；纯数字输入视为 IPC 条款号，改写为 "What is Section N IPC?"。
func NormalizeQuery(raw string) (string, error) {
	q := strings.TrimSpace(raw)
	if q == "" {
		return "", ErrEmptyQuery
	}
	if isDigits(q) {
		q = fmt.Sprintf("What is Section %s IPC?", q)
	}
	return q, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
