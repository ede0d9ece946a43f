package firmware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	logx "bioswatch/pkg/logx"
)

const defaultHTTPTimeout = 30 * time.Second

// maxBodyBytes caps how much of the vendor response is read.
const maxBodyBytes = 4 << 20

type Fetcher struct {
	url     string
	timeout time.Duration
	client  *http.Client
	log     logx.Logger
}

type Option func(*Fetcher)

func WithURL(url string) Option {
	return func(f *Fetcher) {
		if url != "" {
			f.url = url
		}
	}
}

// WithTimeout sets the HTTP client timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

func WithLogger(log logx.Logger) Option {
	return func(f *Fetcher) { f.log = log }
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		url:     DefaultURL,
		timeout: defaultHTTPTimeout,
	}
	for _, o := range opts {
		o(f)
	}
	f.client = &http.Client{Timeout: f.timeout}
	if f.log.IsZero() {
		f.log = logx.Nop()
	}
	return f
}

// FetchLatestVersion performs a single GET against the vendor endpoint and
// returns the first file version of the first result object. It never retries.
func (f *Fetcher) FetchLatestVersion(ctx context.Context) (Version, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: unexpected status code %d", ErrNetwork, resp.StatusCode)
	}

	v, f0, err := decodeLatest(body)
	if err != nil {
		return 0, err
	}

	f.log.Debug("fetched latest firmware",
		logx.Uint32("version", uint32(v)),
		logx.String("title", f0.Title),
		logx.String("release_date", f0.ReleaseDate),
		logx.Duration("elapsed", time.Since(start)),
	)
	return v, nil
}

// decodeLatest extracts Result.Obj[0].Files[0].Version. Keys are matched
// exactly; a missing or null Result, Obj, Files or Version is ErrParse, an
// empty Obj or Files list is ErrEmptyResult.
func decodeLatest(body []byte) (Version, file, error) {
	var top object
	if err := json.Unmarshal(body, &top); err != nil {
		return 0, file{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	res, err := top.object("Result")
	if err != nil {
		return 0, file{}, fmt.Errorf("%w (status=%q message=%q)", err, top.str("Status"), top.str("Message"))
	}

	objs, err := res.list("Obj")
	if err != nil {
		return 0, file{}, err
	}
	if len(objs) == 0 {
		return 0, file{}, fmt.Errorf("%w: no results returned", ErrEmptyResult)
	}
	var first object
	if err := json.Unmarshal(objs[0], &first); err != nil {
		return 0, file{}, fmt.Errorf("%w: Result.Obj[0]: %w", ErrParse, err)
	}

	files, err := first.list("Files")
	if err != nil {
		return 0, file{}, err
	}
	if len(files) == 0 {
		return 0, file{}, fmt.Errorf("%w: no files returned", ErrEmptyResult)
	}
	var f0 object
	if err := json.Unmarshal(files[0], &f0); err != nil {
		return 0, file{}, fmt.Errorf("%w: Files[0]: %w", ErrParse, err)
	}

	raw, ok := f0.get("Version")
	if !ok {
		return 0, file{}, fmt.Errorf("%w: missing Version", ErrParse)
	}
	var ver string
	if err := json.Unmarshal(raw, &ver); err != nil {
		return 0, file{}, fmt.Errorf("%w: Version: %w", ErrParse, err)
	}
	v, err := ParseVersion(ver)
	if err != nil {
		return 0, file{}, err
	}
	return v, file{Version: ver, Title: f0.str("Title"), ReleaseDate: f0.str("ReleaseDate")}, nil
}

// object is a JSON object with case-sensitive key lookup.
type object map[string]json.RawMessage

// get returns the value under key; null counts as missing.
func (o object) get(key string) (json.RawMessage, bool) {
	v, ok := o[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

func (o object) object(key string) (object, error) {
	raw, ok := o.get(key)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrParse, key)
	}
	var out object
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, key, err)
	}
	return out, nil
}

func (o object) list(key string) ([]json.RawMessage, error) {
	raw, ok := o.get(key)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrParse, key)
	}
	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, key, err)
	}
	return out, nil
}

// str returns an optional string field, empty when absent or not a string.
func (o object) str(key string) string {
	raw, ok := o.get(key)
	if !ok {
		return ""
	}
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}
