package engine

import "encoding/json"

// --- Generics Support ---

// Decode converts a record into a typed struct using its JSON tags.
func Decode[T any](rec Record) (T, error) {
	var target T
	bytes, err := json.Marshal(rec)
	if err != nil {
		return target, err
	}
	err = json.Unmarshal(bytes, &target)
	return target, err
}

// List loads a collection and decodes every record into T.
// Records that do not fit T are reported as an error; nothing is skipped.
func List[T any](r RecordReader, collection string) ([]T, error) {
	records := r.Load(collection)
	out := make([]T, 0, len(records))
	for _, rec := range records {
		v, err := Decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Encode converts a typed value into a record for Append or Import.
func Encode(v any) (Record, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(bytes, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}
