package domain

// ChunkMetadata tags every indexed chunk. AgentID is the only tenancy
// boundary the vector index knows about.
type ChunkMetadata struct {
	AgentID    string   `json:"agent_id"`
	FileType   FileType `json:"file_type"`
	FileName   string   `json:"file_name"`
	Timestamp  int64    `json:"timestamp"`
	ChunkSize  int      `json:"chunk_size"`
	ChunkIndex int      `json:"chunk_index"`
}

// Chunk is a bounded span of extracted document text
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ScoredChunk is a search hit
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// Source is a retrieved excerpt returned alongside a chat answer
type Source struct {
	FileName   string   `json:"file_name"`
	FileType   FileType `json:"file_type"`
	ChunkIndex int      `json:"chunk_index"`
	Content    string   `json:"content"`
	Score      float32  `json:"score"`
}

// ChatReply is the result of one chat turn
type ChatReply struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}
