package ambeo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Value type tags used in read extraction and write envelopes.
const (
	TypeBool                 = "bool_"
	TypeInt32                = "i32_"
	TypeInt16                = "i16_"
	TypeString               = "string_"
	TypeDouble               = "double_"
	TypeEspressoBrightness   = "espressoBrightness"
	TypePowerTarget          = "powerTarget"
	TypeBluetoothState       = "bluetoothState"
	TypePopcornAudioPreset   = "popcornAudioPreset"
	TypePopcornInputID       = "popcornInputId"
	TypePopcornSubwooferList = "popcornSubwooferList"
)

// API functions and roles.
const (
	FuncGetData  = "getData"
	FuncSetData  = "setData"
	FuncGetRows  = "getRows"
	RoleAll      = "@all"
	RoleValue    = "value"
	RoleActivate = "activate"
)

// activateValue is the payload sent with every "activate" request.
const activateValue = `{"type":"bool_","bool_":true}`

// Envelope encodes a write payload as {"type":tag,tag:value}.
//
// The tag appears twice, first as the discriminator. Key order is
// significant to the device so the document is assembled by hand.
func Envelope(tag string, value any) (string, error) {
	tagJSON, err := json.Marshal(tag)
	if err != nil {
		return "", fmt.Errorf("encoding type tag: %w", err)
	}
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encoding %s value: %w", tag, err)
	}

	var b strings.Builder
	b.Grow(len(tagJSON)*2 + len(valueJSON) + 12)
	b.WriteString(`{"type":`)
	b.Write(tagJSON)
	b.WriteByte(',')
	b.Write(tagJSON)
	b.WriteByte(':')
	b.Write(valueJSON)
	b.WriteByte('}')
	return b.String(), nil
}

// Request describes one API call. Empty fields are left out of the
// query string.
type Request struct {
	Function string
	Path     string
	Role     string
	Value    string
	From     *int
	To       *int
}

// Encode renders the request relative to the API root, appending the
// given nonce as _nocache. Parameter order follows the device firmware's
// own web UI: path, roles, value, from, to, _nocache.
func (r Request) Encode(nonce int64) string {
	var b strings.Builder
	b.WriteString(r.Function)
	b.WriteString("?path=")
	b.WriteString(escapePath(r.Path))
	if r.Role != "" {
		b.WriteString("&roles=")
		b.WriteString(escapePath(r.Role))
	}
	if r.Value != "" {
		b.WriteString("&value=")
		b.WriteString(url.QueryEscape(r.Value))
	}
	if r.From != nil {
		b.WriteString("&from=")
		b.WriteString(strconv.Itoa(*r.From))
	}
	if r.To != nil {
		b.WriteString("&to=")
		b.WriteString(strconv.Itoa(*r.To))
	}
	b.WriteString("&_nocache=")
	b.WriteString(strconv.FormatInt(nonce, 10))
	return b.String()
}

// pathUnescaper keeps the separators of device paths readable.
var pathUnescaper = strings.NewReplacer("%3A", ":", "%2F", "/", "%40", "@")

func escapePath(p string) string {
	return pathUnescaper.Replace(url.QueryEscape(p))
}

// Row is one entry of a getRows listing.
type Row struct {
	Title string          `json:"title"`
	Path  string          `json:"path,omitempty"`
	ID    json.RawMessage `json:"id,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// executeRequest sends r with a fresh nonce.
func (t *Transport) executeRequest(ctx context.Context, r Request) (json.RawMessage, error) {
	return t.Fetch(ctx, r.Encode(t.nextNonce()))
}

// getData reads path with all roles.
func (t *Transport) getData(ctx context.Context, path string) (json.RawMessage, error) {
	return t.executeRequest(ctx, Request{Function: FuncGetData, Path: path, Role: RoleAll})
}

// setValue writes value at path inside a typed envelope.
func (t *Transport) setValue(ctx context.Context, path, tag string, value any) error {
	env, err := Envelope(tag, value)
	if err != nil {
		return err
	}
	_, err = t.executeRequest(ctx, Request{Function: FuncSetData, Path: path, Role: RoleValue, Value: env})
	return err
}

// activate triggers a button-like path.
func (t *Transport) activate(ctx context.Context, path string) error {
	_, err := t.executeRequest(ctx, Request{Function: FuncSetData, Path: path, Role: RoleActivate, Value: activateValue})
	return err
}

// activateWith triggers path with a custom activation payload.
func (t *Transport) activateWith(ctx context.Context, path, value string) error {
	_, err := t.executeRequest(ctx, Request{Function: FuncSetData, Path: path, Role: RoleActivate, Value: value})
	return err
}

// getRows lists the rows of a collection in [from, to). A response
// without a rows key yields nil rows and no error.
func (t *Transport) getRows(ctx context.Context, path string, from, to int) ([]Row, error) {
	raw, err := t.executeRequest(ctx, Request{
		Function: FuncGetRows,
		Path:     path,
		Role:     RoleAll,
		From:     &from,
		To:       &to,
	})
	if err != nil {
		return nil, err
	}
	rows := extractAs[[]Row](t.logger, raw, "rows")
	if rows == nil {
		return nil, nil
	}
	return *rows, nil
}

// getValue reads path and extracts value.<tag> as T.
// A missing key yields nil without an error.
func getValue[T any](ctx context.Context, t *Transport, path, tag string) (*T, error) {
	raw, err := t.getData(ctx, path)
	if err != nil {
		return nil, err
	}
	return extractAs[T](t.logger, raw, "value", tag), nil
}

// extract walks nested JSON objects along keys. It returns false when
// any key is missing, a level is not an object, or the leaf is null.
func extract(logger Logger, raw json.RawMessage, keys ...string) (json.RawMessage, bool) {
	cur := raw
	for _, key := range keys {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil || obj == nil {
			logger.Debug("device response is not an object", "key", key)
			return nil, false
		}
		next, ok := obj[key]
		if !ok {
			logger.Debug("missing key in device response", "key", key, "path", strings.Join(keys, "."))
			return nil, false
		}
		cur = next
	}
	if bytes.Equal(bytes.TrimSpace(cur), []byte("null")) {
		return nil, false
	}
	return cur, true
}

// extractAs extracts keys and decodes the leaf into T.
func extractAs[T any](logger Logger, raw json.RawMessage, keys ...string) *T {
	leaf, ok := extract(logger, raw, keys...)
	if !ok {
		return nil
	}
	var v T
	if err := json.Unmarshal(leaf, &v); err != nil {
		logger.Warn("unexpected value shape in device response",
			"path", strings.Join(keys, "."), "error", err)
		return nil
	}
	return &v
}

// rawID renders a JSON id as a string: strings are unquoted, numbers
// are kept verbatim.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
