package audit

// Entry is one line in the hash-chained JSONL audit log: a single terminal
// gate outcome for one frame. All fields are scalars (no map[string]any) to
// guarantee deterministic json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp  string `json:"ts"`
	Address    string `json:"address"` // hex, "0x180"
	Data       string `json:"data"`    // payload hex
	Bus        int    `json:"bus"`
	Mode       string `json:"mode"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"`
	Overridden bool   `json:"overridden,omitempty"`
	PolicyHash string `json:"policy_hash,omitempty"`
	PrevHash   string `json:"prev_hash"`
}
