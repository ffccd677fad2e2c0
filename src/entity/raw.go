package entity

import (
	"bytes"
	"fmt"
	"strings"
)

type rawField struct {
	key   string
	value string
}

// writeRaw renders fields as "Key: value" lines. The signature block, when
// requested, follows the fields.
func writeRaw(fields []rawField, signature string, withSignature bool) []byte {
	var buf bytes.Buffer
	for _, f := range fields {
		fmt.Fprintf(&buf, "%s: %s\n", f.key, dos2unix(f.value))
	}
	if withSignature {
		buf.WriteString(normalizeSignature(signature))
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// dos2unix converts CRLF and lone CR line endings to LF.
func dos2unix(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func normalizeSignature(sig string) string {
	return strings.TrimRight(dos2unix(sig), "\n")
}

// reference renders an amendment reference as "number-hash".
func reference(number int, hash string) string {
	return fmt.Sprintf("%d-%s", number, hash)
}

// oneLine rejects line breaks in a text field: they would add lines to the
// signed payload.
func oneLine(entity, field, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return &SchemaError{entity, field, fmt.Errorf("must fit on one line")}
	}
	return nil
}

// userID checks a user identifier. Colons separate the parts of inline forms.
func userID(entity, value string) error {
	if err := oneLine(entity, "userid", value); err != nil {
		return err
	}
	if strings.Contains(value, ":") {
		return &SchemaError{entity, "userid", fmt.Errorf("must not contain ':'")}
	}
	return nil
}
