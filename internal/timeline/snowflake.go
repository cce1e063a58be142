package timeline

// EpochMillis is the fixed custom epoch (in Unix milliseconds) that
// Snowflake ids are offset from. It is a constant inherited from the
// upstream API's id scheme, not a tunable.
const EpochMillis uint64 = 1288834974657

// Snowflake is a 64-bit id whose high 42 bits encode milliseconds since
// EpochMillis. Items in this system are ordered entirely by Snowflake; it
// is the only key type the cache core ever instantiates interval.Ordered
// and intervalstore.TimeValue with.
type Snowflake uint64

// Seconds is a Unix timestamp in whole seconds, the coordinate external
// callers (the HTTP edge) are expected to supply. The cache core never
// operates on Seconds directly; SecondsToSnowflake/SnowflakeToSeconds
// convert at the boundary.
type Seconds uint64

// SecondsToSnowflake converts a Unix-seconds timestamp to the smallest
// Snowflake id that could have been minted at that second.
//
// seconds → id: ((seconds * 1000) - EpochMillis) << 22
func SecondsToSnowflake(s Seconds) Snowflake {
	millis := uint64(s) * 1000
	return Snowflake((millis - EpochMillis) << 22)
}

// SnowflakeToSeconds converts a Snowflake id back to the Unix-seconds
// timestamp encoded in its high bits.
//
// id → seconds: ((id >> 22) + EpochMillis) / 1000
//
// This is not a round-trip inverse of SecondsToSnowflake: the low 22 bits
// of a Snowflake carry sub-second sequence data that SnowflakeToSeconds
// discards, so ToSeconds(ToID(s)) == s holds, but ToID(ToSeconds(id)) == id
// does not in general.
func SnowflakeToSeconds(id Snowflake) Seconds {
	millis := (uint64(id) >> 22) + EpochMillis
	return Seconds(millis / 1000)
}
