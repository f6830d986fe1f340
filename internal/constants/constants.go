package constants

import "time"

var MarkovDefaults = struct {
	Order           int
	MaxTries        int
	MaxOverlapRatio float64
	MaxOverlapTotal int
	MaxWords        int
	MinWords        int
}{
	Order:           2,
	MaxTries:        100,
	MaxOverlapRatio: 0.7,
	MaxOverlapTotal: 15,
	MaxWords:        60,
	MinWords:        2,
}

var CommandTiming = struct {
	CooldownWarningTTL time.Duration
	PingEditDelay      time.Duration
	MarkovReplyPause   time.Duration
	JournalTimeout     time.Duration
}{
	CooldownWarningTTL: 10 * time.Second,       // 쿨다운 경고 메시지 자동 삭제
	PingEditDelay:      500 * time.Millisecond, // Pong! 편집 지연
	MarkovReplyPause:   2 * time.Second,        // markov 응답 후 대기
	JournalTimeout:     3 * time.Second,
}

var DefaultCooldowns = map[string]time.Duration{
	"markov": 10 * time.Second,
	"ping":   5 * time.Second,
}

var WebSocketConfig = struct {
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
}{
	MaxReconnectAttempts: 5,
	ReconnectDelay:       5 * time.Second,
}

var RedditConfig = struct {
	BaseURL      string
	Timeout      time.Duration
	CommentLimit int
	CacheTTL     time.Duration
}{
	BaseURL:      "https://www.reddit.com",
	Timeout:      10 * time.Second,
	CommentLimit: 100,
	CacheTTL:     10 * time.Minute,
}

var CircuitBreakerConfig = struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}{
	FailureThreshold: 3,                // 3회 연속 실패 시 Circuit OPEN
	ResetTimeout:     30 * time.Second, // 기본 재시도 대기 시간 (30초)
}

var LaneConfig = struct {
	Buffer      int
	IdleTimeout time.Duration
}{
	Buffer:      32,
	IdleTimeout: 5 * time.Minute,
}
