package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsDefaultBaseURL   = "https://api.elevenlabs.io"
	elevenLabsDefaultWSBaseURL = "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"
	elevenLabsDefaultModelID   = "eleven_flash_v2_5"
)

// ElevenLabs synthesizes commentary audio. It exposes both capabilities:
// Synthesize over REST and StreamAudio over the stream-input websocket.
type ElevenLabs struct {
	apiKey     string
	voiceID    string
	httpClient *http.Client
	baseURL    string
	wsBaseURL  string
}

func NewElevenLabs(apiKey, voiceID string) *ElevenLabs {
	return NewElevenLabsWithClient(apiKey, voiceID, nil)
}

func NewElevenLabsWithClient(apiKey, voiceID string, client *http.Client) *ElevenLabs {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ElevenLabs{
		apiKey:     strings.TrimSpace(apiKey),
		voiceID:    strings.TrimSpace(voiceID),
		httpClient: client,
		baseURL:    elevenLabsDefaultBaseURL,
		wsBaseURL:  elevenLabsDefaultWSBaseURL,
	}
}

// WithBaseURLs overrides the REST and websocket endpoints, for tests.
func (e *ElevenLabs) WithBaseURLs(baseURL, wsBaseURL string) *ElevenLabs {
	if strings.TrimSpace(baseURL) != "" {
		e.baseURL = strings.TrimSpace(baseURL)
	}
	if strings.TrimSpace(wsBaseURL) != "" {
		e.wsBaseURL = strings.TrimSpace(wsBaseURL)
	}
	return e
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}
	if e.voiceID == "" {
		return nil, fmt.Errorf("elevenlabs voice id is required")
	}

	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": elevenLabsDefaultModelID,
	})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", strings.TrimRight(e.baseURL, "/"), url.PathEscape(e.voiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elevenlabs synthesize: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return io.ReadAll(resp.Body)
}

// StreamAudio sends one utterance through the stream-input websocket and
// returns the concatenated audio. The connection lives for a single
// utterance; commentary lines are sparse enough that reconnect cost does not
// matter and a dead connection cannot poison later utterances.
func (e *ElevenLabs) StreamAudio(ctx context.Context, text string) ([]byte, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}
	wsURL, err := buildElevenLabsWSURL(e.wsBaseURL, e.voiceID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	send := func(payload map[string]any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteJSON(payload)
	}
	// Initial frame opens the stream; the trailing space keeps the provider's
	// buffering happy, per its stream-input protocol.
	if err := send(map[string]any{"text": " ", "voice_id": e.voiceID}); err != nil {
		return nil, err
	}
	utterance := strings.TrimSpace(text)
	if utterance != "" {
		utterance += " "
	}
	if err := send(map[string]any{"text": utterance}); err != nil {
		return nil, err
	}
	if err := send(map[string]any{"text": "", "flush": true}); err != nil {
		return nil, err
	}

	var audio []byte
	for {
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetReadDeadline(deadline)
		} else {
			_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if len(audio) > 0 && websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return audio, nil
			}
			return nil, err
		}
		var msg struct {
			Audio    string `json:"audio"`
			IsFinal  bool   `json:"isFinal"`
			IsFinal2 bool   `json:"is_final"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err == nil {
				audio = append(audio, chunk...)
			}
		}
		if msg.IsFinal || msg.IsFinal2 {
			return audio, nil
		}
	}
}

func buildElevenLabsWSURL(base, voiceID string) (string, error) {
	if strings.TrimSpace(voiceID) == "" {
		return "", fmt.Errorf("elevenlabs voice id is required")
	}
	if strings.TrimSpace(base) == "" {
		base = elevenLabsDefaultWSBaseURL
	}
	base = strings.ReplaceAll(base, "{voice_id}", url.PathEscape(voiceID))
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs ws url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input"
	}
	q := u.Query()
	if q.Get("model_id") == "" {
		q.Set("model_id", elevenLabsDefaultModelID)
	}
	if q.Get("output_format") == "" {
		q.Set("output_format", "pcm_24000")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
