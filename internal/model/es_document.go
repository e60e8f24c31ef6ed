package model

// LegalChunk 是存储在向量索引中的一段法条文本及其元数据。
// 检索时只读取 metadata，vector 字段不会返回。
type LegalChunk struct {
	ID         string    `json:"-"`
	Text       string    `json:"text"`
	Source     string    `json:"source,omitempty"`
	SourcePDF  string    `json:"source_pdf,omitempty"`
	SourceAct  string    `json:"source_act,omitempty"`
	ChunkID    string    `json:"chunk_id,omitempty"`
	Page       string    `json:"page,omitempty"`
	PageNumber string    `json:"page_number,omitempty"`
	Vector     []float32 `json:"vector"`
}
