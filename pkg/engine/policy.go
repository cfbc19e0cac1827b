package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/civicwater/waterboard/pkg/schema"
)

// System field names.
const (
	FieldID         = "id"
	FieldReference  = "reference"
	FieldReceivedAt = "receivedAt"
	FieldCreatedAt  = "createdAt"
	FieldStatus     = "status"
)

// TimestampLayout is the ISO-8601 instant written into timestamp fields.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// tokenLength is the number of base-36 characters kept after the prefix.
const tokenLength = 8

// KeyKind selects how a collection assigns references.
type KeyKind int

const (
	// NumericKey assigns 1 + max(existing ids). Ids are never reused.
	NumericKey KeyKind = iota
	// TokenKey assigns PREFIX + the last 8 characters of base36(epoch millis).
	TokenKey
)

// Policy describes the system fields of one collection.
type Policy struct {
	Kind          KeyKind
	KeyField      string
	TimeField     string
	InitialStatus string
	// Prefix returns the token prefix for a payload. Only used by TokenKey.
	Prefix func(Record) string
}

func fixedPrefix(p string) func(Record) string {
	return func(Record) string { return p }
}

func maintenancePrefix(r Record) string {
	if strings.EqualFold(strings.TrimSpace(r.String("sector")), schema.SectorIndustrial) {
		return schema.PrefixIndustrialRequest
	}
	return schema.PrefixCitizenMaintenance
}

var numericPolicy = Policy{Kind: NumericKey, KeyField: FieldID, TimeField: FieldCreatedAt}

var policies = map[string]Policy{
	schema.ContactMessages: {
		Kind:          TokenKey,
		KeyField:      FieldReference,
		TimeField:     FieldReceivedAt,
		InitialStatus: schema.StatusReceived,
		Prefix:        fixedPrefix(schema.PrefixContactMessage),
	},
	schema.MaintenanceRequests: {
		Kind:          TokenKey,
		KeyField:      FieldReference,
		TimeField:     FieldReceivedAt,
		InitialStatus: schema.StatusNew,
		Prefix:        maintenancePrefix,
	},
	schema.Complaints: {
		Kind:          TokenKey,
		KeyField:      FieldReference,
		TimeField:     FieldReceivedAt,
		InitialStatus: schema.StatusNew,
		Prefix:        fixedPrefix(schema.PrefixComplaint),
	},
}

// PolicyFor returns the policy of a collection. Collections without a
// registered policy use numeric ids and a createdAt timestamp.
func PolicyFor(collection string) Policy {
	if p, ok := policies[collection]; ok {
		return p
	}
	return numericPolicy
}

// Token formats a reference token for the given epoch milliseconds.
// Short encodings are left-padded with zeros so the token part is always 8 characters.
func Token(prefix string, millis int64) string {
	enc := strings.ToUpper(strconv.FormatInt(millis, 36))
	if len(enc) > tokenLength {
		enc = enc[len(enc)-tokenLength:]
	} else if len(enc) < tokenLength {
		enc = strings.Repeat("0", tokenLength-len(enc)) + enc
	}
	return prefix + enc
}

// NextKey computes the reference for a new record given the current contents
// of the collection. Tokens that already exist are regenerated from the next
// millisecond so references stay unique.
func (p Policy) NextKey(existing []Record, payload Record, now time.Time) any {
	if p.Kind == NumericKey {
		return maxInt(existing, p.KeyField) + 1
	}

	prefix := ""
	if p.Prefix != nil {
		prefix = p.Prefix(payload)
	}
	taken := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		taken[r.String(p.KeyField)] = struct{}{}
	}

	ms := now.UnixMilli()
	for {
		tok := Token(prefix, ms)
		if _, dup := taken[tok]; !dup {
			return tok
		}
		ms++
	}
}

// Stamp builds the stored form of a new record: the payload with any
// caller-supplied system fields replaced by generated ones.
func (p Policy) Stamp(existing []Record, payload Record, now time.Time) Record {
	rec := payload.Clone()
	if rec == nil {
		rec = Record{}
	}
	delete(rec, p.KeyField)
	delete(rec, p.TimeField)

	rec[p.KeyField] = p.NextKey(existing, rec, now)
	rec[p.TimeField] = now.UTC().Format(TimestampLayout)
	if p.InitialStatus != "" {
		rec[FieldStatus] = p.InitialStatus
	}
	return rec
}

// Apply returns rec with changes overwritten onto it. The reference and
// timestamp fields are immutable and silently kept.
func (p Policy) Apply(rec Record, changes Record) Record {
	out := rec.Clone()
	for k, v := range changes {
		if k == p.KeyField || k == p.TimeField {
			continue
		}
		out[k] = v
	}
	return out
}

func maxInt(records []Record, field string) int64 {
	var max int64
	for _, r := range records {
		if n, ok := r.Int(field); ok && n > max {
			max = n
		}
	}
	return max
}
