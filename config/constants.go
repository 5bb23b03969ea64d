package config

import (
	"time"
)

/* =========================
   SEED PROTOCOL
========================= */

const (
	// Secret length in random bytes (hex encoded to 64 chars)
	SecretBytes = 32

	// Hex length of a sha256 seed
	SeedHexLength = 64

	// Bounded wait for the external entropy fetch
	EntropyTimeout = 5 * time.Second

	// Maximum purpose-label length accepted by Derive
	MaxLabelLength = 128
)

/* =========================
   DETERMINISTIC EXPANDER
========================= */

const (
	// Linear congruential generator used for permutations
	LCGMultiplier = 1103515245
	LCGIncrement  = 12345
	LCGModulus    = 1 << 31

	// Leading hex characters of the seed that seed the LCG
	LCGSeedHexChars = 8

	// Faces on a die
	DieFaces = 6

	// Rejection sampling: largest multiple of 6 below 256
	PairRejectThreshold = 252

	// Extension hashes tried after the seed runs out of bytes
	MaxPairExtensions = 64

	// Grid spawn: percent of spawns that are a 2 (rest are 4)
	SpawnTwoPercent = 90
	SpawnLowValue   = 2
	SpawnHighValue  = 4

	// Largest deck accepted by Permutation
	MaxPermutationSize = 1 << 16
)

/* =========================
   GAME RULES
========================= */

const (
	// Backgammon
	BackgammonCheckers = 15
	BackgammonPoints   = 24
	BackgammonMaxTurns = 2000

	// Card games deal from one standard deck
	DeckSize = 52

	// Blackjack
	BlackjackMaxHands = 4

	// Yahtzee
	YahtzeeDice     = 5
	YahtzeeTurns    = 13
	YahtzeeMaxRolls = 3

	// 2048
	GridSize = 4

	// Garbage
	GarbageSlots = 10

	// Chess derived score: score = round(ChessScoreScale * S * (1 - E))
	ChessScoreScale     = 1000
	ChessScoreTolerance = 0.10
	ChessEloDivisor     = 400.0
	ChessMinRating      = 100
	ChessMaxRating      = 3500
)

/* =========================
   REDIS TTL CONFIGURATION
========================= */

const (
	// Live session TTL
	// Key: session:{sessionId}
	SessionTTL = 24 * time.Hour

	// Revealed sessions stay readable for verifiers
	RevealedSessionTTL = 7 * 24 * time.Hour
)

/* =========================
   REDIS KEY PATTERNS
========================= */

const (
	RedisSessionKey = "session:%s" // session:{sessionId}

	// Optimistic WATCH/MULTI attempts before a contended update gives up
	RedisUpdateRetries = 10
)

/* =========================
   BOLT BUCKETS
========================= */

const (
	BoltSessionsBucket = "sessions"
	BoltRecordsBucket  = "records"
)

/* =========================
   POSTGRESQL CONFIGURATION
========================= */

const (
	// Connection pool settings
	MaxOpenConns    = 25
	MinIdleConns    = 5
	ConnMaxLifetime = 5 * time.Minute

	// Connect + schema timeout
	PostgresInitTimeout = 10 * time.Second
)

/* =========================
   API CONFIGURATION
========================= */

const (
	// Largest request body accepted by the API
	MaxRequestBytes = 4 << 20 // 4MB

	// Records returned by a listing call
	DefaultRecordLimit = 50
	MaxRecordLimit     = 500

	// Bound on one oracle move request
	OracleTimeout = 3 * time.Second

	// HTTP server timeouts
	HTTPReadTimeout     = 15 * time.Second
	HTTPWriteTimeout    = 15 * time.Second
	HTTPShutdownTimeout = 5 * time.Second
)

/* =========================
   WEBSOCKET CONFIGURATION
========================= */

const (
	WSWriteDeadline = 10 * time.Second
	WSPingInterval  = 30 * time.Second
	WSReadDeadline  = 60 * time.Second

	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024

	// Events buffered per subscriber before it is dropped
	WSSendBuffer = 64
)
