package stitch

// defaultIdentityMarker partitions streams that carry no identity field.
const defaultIdentityMarker = "default"

// StreamIdentity derives the stable key identifying which logical stream an
// event belongs to. Two events with the same tag but different identity field
// values never share a buffer. A configured but missing field contributes an
// empty value rather than an error.
func StreamIdentity(tag string, record Record, identityKey string) string {
	if identityKey == "" {
		return tag + ":" + defaultIdentityMarker
	}
	return tag + ":" + fieldString(record, identityKey)
}

// fieldString extracts a record field as a string. Missing fields and nil
// values read as empty; non-string values use their default formatting.
func fieldString(record Record, key string) string {
	v, ok := record[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return stringify(v)
}
