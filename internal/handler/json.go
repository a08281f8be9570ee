package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"
)

const requestBodyLimit = 64 << 10 // 64KiB

// writeJSON writes an object built by fn with the given status code.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	e.ObjStart()
	fn(&e)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the error body shape shared by every endpoint.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(message)
	})
}

// decodeObject reads the request body and walks its top-level object fields.
// Unknown fields are skipped, so clients can send extra keys without breaking.
func decodeObject(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, requestBodyLimit))
	if err != nil {
		return err
	}
	d := jx.DecodeBytes(body)
	return d.Obj(func(d *jx.Decoder, key string) error {
		return field(d, key)
	})
}
