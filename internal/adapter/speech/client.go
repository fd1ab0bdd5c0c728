// Package speech renders warning texts to MP3 audio with the Google Translate
// text-to-speech endpoint.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxChunkLen is the longest text the endpoint accepts in one request.
const MaxChunkLen = 100

// Client implements domain.Synthesizer.
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a speech client for the given language code.
func NewClient(baseURL, language string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		language:   language,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Synthesize fetches one MP3 segment per chunk of text and writes them,
// concatenated, to outPath. outPath is left untouched on failure.
func (c *Client) Synthesize(ctx context.Context, text, outPath string) error {
	chunks := Chunk(text, MaxChunkLen)
	if len(chunks) == 0 {
		return errors.New("speech: no text to synthesize")
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		if err := c.fetch(ctx, chunk, i, len(chunks), &audio); err != nil {
			return fmt.Errorf("speech: chunk %d of %d: %w", i+1, len(chunks), err)
		}
	}

	if err := writeAtomic(outPath, audio.Bytes()); err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	c.logger.Debug("speech synthesized", "path", outPath, "chunks", len(chunks), "bytes", audio.Len())
	return nil
}

func (c *Client) fetch(ctx context.Context, chunk string, idx, total int, dst io.Writer) error {
	params := url.Values{
		"ie":      {"UTF-8"},
		"client":  {"tw-ob"},
		"tl":      {c.language},
		"q":       {chunk},
		"idx":     {strconv.Itoa(idx)},
		"total":   {strconv.Itoa(total)},
		"textlen": {strconv.Itoa(utf8.RuneCountInString(chunk))},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tts API error: status %d: %s", resp.StatusCode, body)
	}
	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	if n == 0 {
		return errors.New("empty audio segment")
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".speech-*.mp3")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("write audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close audio: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Chunk splits text into pieces of at most maxLen runes, breaking after
// sentence punctuation or at spaces where possible. Words longer than maxLen
// are split mid-word.
func Chunk(text string, maxLen int) []string {
	var out []string
	for _, sentence := range splitSentences(text) {
		out = appendWords(out, sentence, maxLen)
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if strings.ContainsRune(".!?;:\n", r) {
			out = append(out, text[start:i+utf8.RuneLen(r)])
			start = i + utf8.RuneLen(r)
		}
	}
	return append(out, text[start:])
}

func appendWords(out []string, sentence string, maxLen int) []string {
	var cur []rune
	flush := func() {
		if s := strings.TrimSpace(string(cur)); s != "" {
			out = append(out, s)
		}
		cur = cur[:0]
	}
	for _, word := range strings.Fields(sentence) {
		w := []rune(word)
		for len(w) > maxLen {
			flush()
			out = append(out, string(w[:maxLen]))
			w = w[maxLen:]
		}
		if len(cur) > 0 && len(cur)+1+len(w) > maxLen {
			flush()
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, w...)
	}
	flush()
	return out
}
