package timeline

// Item is an opaque record the upstream API returns, carrying only the
// Snowflake id the whole system orders and dedupes by. The id is both the
// key and the payload: nothing downstream needs any other per-item field.
type Item struct {
	ID Snowflake
}

// Time satisfies intervalstore.TimeValue[Snowflake].
func (i Item) Time() Snowflake { return i.ID }
