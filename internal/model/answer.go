// Package model 包含了应用的数据模型定义。
package model

import "strings"

// AnswerResult 是一次问答的最终结果，也是写入回答缓存的单元。
// Sources 为空表示回答没有使用法律数据库中的内容。
type AnswerResult struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence int      `json:"confidence"`
}

// Grounded 报告该结果是否由数据库检索内容支撑。
func (r AnswerResult) Grounded() bool {
	return len(r.Sources) > 0
}

// Role 表示对话中的发言方。
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Label 返回提示词中使用的角色标签。
func (r Role) Label() string {
	if r == RoleUser {
		return "User"
	}
	return "AI"
}

// ChatTurn 是一条历史对话，按时间顺序排列。
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// String 渲染为 "User: ..." 或 "AI: ..." 形式的一行。
func (t ChatTurn) String() string {
	return t.Role.Label() + ": " + t.Content
}

// FormatHistory 将历史对话渲染为多行文本。
func FormatHistory(turns []ChatTurn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, turn.String())
	}
	return strings.Join(lines, "\n")
}

// LastTurns 返回最后 n 条历史，n <= 0 时返回全部。
func LastTurns(turns []ChatTurn, n int) []ChatTurn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// RetrievedItem 是一次检索得到的单个片段，只在请求内有效。
// Context 带有来源标注，供模型阅读；Source 是展示给用户的来源标签。
type RetrievedItem struct {
	Context string `json:"context"`
	Source  string `json:"source"`
	Rank    int    `json:"rank"`
}

// SplitRetrieved 将检索结果拆成按下标对齐的 contexts 与 sources。
func SplitRetrieved(items []RetrievedItem) (contexts, sources []string) {
	contexts = make([]string, 0, len(items))
	sources = make([]string, 0, len(items))
	for _, item := range items {
		contexts = append(contexts, item.Context)
		sources = append(sources, item.Source)
	}
	return contexts, sources
}
