package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Role            string `json:"role"`
	Name            string `json:"name"`
	// Spawn is the requested player position; ignored for observers.
	Spawn *[3]int `json:"spawn,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	PlayerID        string         `json:"player_id,omitempty"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	WorldID    string `json:"world_id"`
	TickRateHz int    `json:"tick_rate_hz"`
	DayTicks   int    `json:"day_ticks"`
	Seed       int64  `json:"seed"`
}

type CatalogDigests struct {
	MaterialPalette PaletteDigest `json:"material_palette"`
	AgentsDigest    string        `json:"agents_digest"`
}

type PaletteDigest struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// Act kinds.
const (
	ActPlace = "PLACE"
	ActBreak = "BREAK"
	ActFluid = "FLUID"
	ActMove  = "MOVE"
	ActSleep = "SLEEP"
)

// ACT (player -> server)
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Kind            string `json:"kind"`
	Pos             [3]int `json:"pos"`
	Block           string `json:"block,omitempty"`
}

// CHAT (server -> client). To is empty for broadcasts.
type ChatMsg struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick"`
	To   string `json:"to,omitempty"`
	Text string `json:"text"`
}

// SOUND (server -> client)
type SoundMsg struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick"`
	Cue  string `json:"cue"`
	Pos  [3]int `json:"pos"`
}

// BREAK_PROGRESS (server -> client). Stage -1 clears the overlay.
type ProgressMsg struct {
	Type      string `json:"type"`
	Tick      uint64 `json:"tick"`
	ChannelID int64  `json:"channel_id"`
	Pos       [3]int `json:"pos"`
	Stage     int    `json:"stage"`
}

// RAID_STATUS (server -> client), sent on phase changes and once per second while active.
type StatusMsg struct {
	Type            string `json:"type"`
	Tick            uint64 `json:"tick"`
	Phase           string `json:"phase"`
	RaidLevel       int    `json:"raid_level"`
	TimeUntilRaid   int64  `json:"time_until_raid_ticks"`
	ActiveRaidTicks int64  `json:"active_raid_ticks"`
	Agents          int    `json:"agents"`
	TrackedBlocks   int    `json:"tracked_blocks"`
	LedgerRecords   int    `json:"ledger_records"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick,omitempty"`
	// To addresses a single player; empty means the receiving session.
	To      string `json:"to,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
