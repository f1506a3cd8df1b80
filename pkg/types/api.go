package types

// Inbound command names.
const (
	CommandStart = "start"
	CommandAbort = "abort"
)

// Outbound status values.
const (
	StatusLoading    = "loading"
	StatusGenerating = "generating"
	StatusComplete   = "complete"
	StatusAborted    = "aborted"
	StatusError      = "error"
)

// GenerateRequest is the inbound message of the generation protocol. Over the
// WebSocket channel Command selects start or abort; POST /generate ignores it.
type GenerateRequest struct {
	// start or abort (WebSocket only).
	// example: start
	Command string `json:"command,omitempty" example:"start"`
	// Catalog model identifier.
	// example: phi_1_5_q4k
	ModelID string `json:"modelID" example:"phi_1_5_q4k"`
	// Optional explicit weights URL, or list of part URLs. Overrides the catalog.
	WeightsURL URLList `json:"weightsURL,omitempty" swaggertype:"array,string"`
	// Optional explicit tokenizer URL. Overrides the catalog.
	TokenizerURL string `json:"tokenizerURL,omitempty"`
	// Optional explicit config URL. Overrides the catalog.
	ConfigURL string `json:"configURL,omitempty"`
	// Prompt text to continue.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Sampling temperature; 0 selects greedy decoding.
	// example: 0.7
	Temp float64 `json:"temp" example:"0.7"`
	// Nucleus sampling probability in [0,1]; 0 or 1 disables it.
	// example: 0.9
	TopP float64 `json:"top_p" example:"0.9"`
	// Repeat penalty over the last 64 tokens; 1 disables it.
	// example: 1.1
	RepeatPenalty float64 `json:"repeatPenalty" example:"1.1"`
	// Random seed.
	// example: 299792458
	Seed uint64 `json:"seed" example:"299792458"`
	// Number of tokens to generate.
	// example: 200
	MaxSeqLen int `json:"maxSeqLen" example:"200"`
}

// Message is one outbound generation event.
type Message struct {
	// loading, generating, complete, aborted or error.
	// example: generating
	Status string `json:"status" example:"generating"`
	// Human readable status text.
	// example: Generating token
	Message string `json:"message,omitempty" example:"Generating token"`
	// Run identifier shared by all events of one generation.
	RunID string `json:"runID,omitempty"`
	// Token produced by this step (generating only).
	Token string `json:"token,omitempty"`
	// Generated text so far (generating only).
	Sentence string `json:"sentence,omitempty"`
	// Tokens emitted so far, including this one (generating only).
	Index int `json:"index,omitempty"`
	// Milliseconds since the first token was requested (generating only).
	TotalTime float64 `json:"totalTime,omitempty"`
	// Throughput so far (generating only).
	TokensSec float64 `json:"tokensSec,omitempty"`
	// Prompt echoed back (generating only).
	Prompt string `json:"prompt,omitempty"`
	// Prompt plus generated text (complete and aborted).
	Output string `json:"output,omitempty"`
	// Error message (error only).
	Error string `json:"error,omitempty"`
	// Error class: fetch, model_load, generation, busy, invalid_request, not_found or unknown.
	ErrorKind string `json:"errorKind,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// Catalog entries.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// HandleStatus summarizes a loaded model handle for /status.
type HandleStatus struct {
	// ID of the loaded model.
	// example: phi_1_5_q4k
	ModelID string `json:"model_id" example:"phi_1_5_q4k"`
	// Backend that loaded the model.
	// example: bigram
	Backend string `json:"backend" example:"bigram"`
	// Time the handle was created (unix seconds).
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at_unix" example:"1700000000"`
	// Last time this handle served a generation (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Total size of the assets the handle was built from.
	// example: 838860800
	AssetBytes int64 `json:"asset_bytes" example:"838860800"`
	// Current queue length for incoming generations.
	QueueLen int `json:"queue_len"`
	// Number of in-flight generations (0 or 1).
	Inflight int `json:"inflight"`
	// Maximum queued generations before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Lifecycle state: ready or draining.
	// example: ready
	State string `json:"state" example:"ready"`
}

// CacheStatus summarizes the asset cache.
type CacheStatus struct {
	// Number of cached URLs.
	Entries int `json:"entries"`
	// Total cached bytes.
	Bytes int64 `json:"bytes"`
	// Capacity in entries; 0 means unbounded.
	Capacity int `json:"capacity"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Loaded model handles.
	Handles []HandleStatus `json:"handles"`
	// Models currently loading.
	Loading []string `json:"loading"`
	// Asset cache summary.
	Cache CacheStatus `json:"cache"`
	// Last load error observed (if any).
	LastError string `json:"last_error,omitempty"`
	// Total successful model loads.
	// example: 3
	LoadsTotal uint64 `json:"loads_total" example:"3"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// StorageValue is the body of GET/PUT /storage/{key}.
type StorageValue struct {
	// Stored value.
	// example: Write a haiku about the ocean.
	Value string `json:"value" example:"Write a haiku about the ocean."`
	// Expiry in seconds for PUT; 0 never expires.
	// example: 86400
	TTLSeconds int `json:"ttl_seconds,omitempty" example:"86400"`
}
