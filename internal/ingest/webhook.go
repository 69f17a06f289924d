package ingest

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/mymmrac/telego"

	"tgfeed/internal/locales"
)

// SecretTokenHeader carries the secret_token registered with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 4 << 20

// updateEnvelope keeps the raw bytes of the channel message fields.
type updateEnvelope struct {
	UpdateID          int             `json:"update_id"`
	ChannelPost       json.RawMessage `json:"channel_post"`
	EditedChannelPost json.RawMessage `json:"edited_channel_post"`
}

// WebhookHandler receives Telegram updates over HTTP.
type WebhookHandler struct {
	ingestor *Ingestor
	secret   string
}

// NewWebhookHandler creates the handler. An empty secret disables the
// header check.
func NewWebhookHandler(ingestor *Ingestor, secret string) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor, secret: secret}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.unauthorized(w, r)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBytes))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var env updateEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.ingestor.log.Warn().Err(err).Msg("undecodable webhook update")
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	for _, raw := range []json.RawMessage{env.ChannelPost, env.EditedChannelPost} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var msg telego.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.ingestor.log.Warn().Err(err).Int("update_id", env.UpdateID).Msg("undecodable channel post")
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		// Rejections are logged by the ingestor; Telegram must not retry them.
		_ = h.ingestor.Ingest(r.Context(), msg, raw)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) unauthorized(w http.ResponseWriter, r *http.Request) {
	data, err := json.Marshal(map[string]string{
		"error": locales.Message(r.Header.Get("Accept-Language"), locales.MsgErrorUnauthorized),
	})
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write(data)
}
