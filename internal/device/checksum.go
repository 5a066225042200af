package device

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// ChecksumPrefix tags roster checksums with the digest algorithm.
const ChecksumPrefix = "sha256:"

// Checksum computes the roster checksum: the device list is sorted by id
// (devices without an id sort as the empty string), serialized as compact
// JSON with map keys in ascending order, and hashed with SHA-256. The
// result is invariant to input ordering and key formatting, so two
// collectors producing the same roster always agree.
func Checksum(devices []Device) (string, error) {
	sorted := make([]Device, len(devices))
	copy(sorted, devices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID() < sorted[j].ID()
	})

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, d := range sorted {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(&buf, map[string]any(d)); err != nil {
			return "", err
		}
	}
	buf.WriteByte(']')

	sum := sha256.Sum256(buf.Bytes())
	return ChecksumPrefix + hex.EncodeToString(sum[:]), nil
}

// writeCanonical emits a deterministic compact JSON encoding: object keys
// are sorted, no insignificant whitespace, numeric literals preserved
// verbatim when decoded with json.Number.
func writeCanonical(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(v.String())
	case string:
		return writeJSONString(buf, v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case float64:
		// Decoders that did not opt into json.Number land here.
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	default:
		return fmt.Errorf("unsupported value in device record: %T", value)
	}
	return nil
}

// writeJSONString emits an ASCII-only JSON string: short escapes for the
// usual control characters, \uXXXX (surrogate pairs above U+FFFF) for
// everything outside 0x20..0x7e. Collectors emitting the checksum from
// other runtimes serialize non-ASCII the same way, so rosters with
// accented device names hash identically everywhere.
func writeJSONString(buf *bytes.Buffer, s string) error {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				buf.WriteByte(byte(r))
			case r > 0xffff:
				r -= 0x10000
				fmt.Fprintf(buf, `\u%04x\u%04x`, 0xd800+(r>>10), 0xdc00+(r&0x3ff))
			default:
				fmt.Fprintf(buf, `\u%04x`, r)
			}
		}
	}
	buf.WriteByte('"')
	return nil
}
