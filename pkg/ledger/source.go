package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
	"github.com/tidwall/gjson"
)

// ErrMalformedPost is returned when a delivered event cannot be turned into a Post.
var ErrMalformedPost = errors.New("malformed post event")

// Event field names shared by the stream intake and the replay log.
const (
	FieldHash        = "hash"
	FieldFrom        = "from"
	FieldTo          = "to"
	FieldValue       = "value"
	FieldTimestamp   = "timestamp"
	FieldBlockNumber = "block_number"
	FieldContent     = "content"
)

// ParsePost builds a Post from flat key/value fields, as delivered by a Redis
// stream entry. Numeric fields are decimal strings; value also accepts 0x hex.
func ParsePost(fields map[string]any) (Post, error) {
	get := func(k string) string { return fieldString(fields[k]) }

	p := Post{
		Hash:         get(FieldHash),
		Sender:       get(FieldFrom),
		Counterparty: get(FieldTo),
		Payload:      []byte(get(FieldContent)),
	}
	var err error
	if p.Value, err = parseValue(get(FieldValue)); err != nil {
		return Post{}, err
	}
	if p.Timestamp, err = parseUint(FieldTimestamp, get(FieldTimestamp)); err != nil {
		return Post{}, err
	}
	if p.BlockNumber, err = parseUint(FieldBlockNumber, get(FieldBlockNumber)); err != nil {
		return Post{}, err
	}
	return p, nil
}

// DecodePostJSON builds a Post from one JSON object line of an event log.
// Numbers may be JSON numbers or strings.
func DecodePostJSON(line []byte) (Post, error) {
	if !gjson.ValidBytes(line) {
		return Post{}, fmt.Errorf("%w: invalid json", ErrMalformedPost)
	}
	root := gjson.ParseBytes(line)
	if !root.IsObject() {
		return Post{}, fmt.Errorf("%w: not an object", ErrMalformedPost)
	}

	fields := make(map[string]any, 7)
	root.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Number {
			fields[key.String()] = value.Raw
		} else {
			fields[key.String()] = value.String()
		}
		return true
	})
	return ParsePost(fields)
}

// Fields is the inverse of ParsePost.
func (p Post) Fields() map[string]any {
	return map[string]any{
		FieldHash:        p.Hash,
		FieldFrom:        p.Sender,
		FieldTo:          p.Counterparty,
		FieldValue:       valueOrZero(p.Value).String(),
		FieldTimestamp:   strconv.FormatUint(p.Timestamp, 10),
		FieldBlockNumber: strconv.FormatUint(p.BlockNumber, 10),
		FieldContent:     string(p.Payload),
	}
}

func fieldString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func parseValue(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || !ledger.AmountInRange(v) {
		return nil, fmt.Errorf("%w: bad %s %q", ErrMalformedPost, FieldValue, s)
	}
	return v, nil
}

func parseUint(name, s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s %q", ErrMalformedPost, name, s)
	}
	return n, nil
}
