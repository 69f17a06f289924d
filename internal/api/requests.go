package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"tgfeed/internal/channel"
	"tgfeed/internal/feed"
	"tgfeed/internal/locales"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("tgchannel", func(fl validator.FieldLevel) bool {
		return channel.Valid(fl.Field().String())
	})
	return v
}

// postsRequest is the validated query of GET /api/posts.
type postsRequest struct {
	Channel string `validate:"required,tgchannel"`
	Limit   int
	Cursor  string
	Before  *time.Time
}

// statsRequest is the validated query of GET /api/stats.
type statsRequest struct {
	Channel string `validate:"required,tgchannel"`
}

// requestError carries the message ID of a client input failure.
type requestError struct {
	msgID string
}

func (e *requestError) Error() string { return e.msgID }

// channelParam applies the default channel and normalization.
func (s *Server) channelParam(r *http.Request) string {
	name := r.URL.Query().Get("channel")
	if strings.TrimSpace(name) == "" {
		name = s.deps.DefaultChannel
	}
	return s.deps.Normalizer.Normalize(name)
}

func (s *Server) parsePostsRequest(r *http.Request) (postsRequest, error) {
	q := r.URL.Query()
	req := postsRequest{
		Channel: s.channelParam(r),
		Cursor:  q.Get("cursor"),
	}
	if err := s.validate.Struct(req); err != nil {
		return req, &requestError{msgID: locales.MsgErrorInvalidChannel}
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, &requestError{msgID: locales.MsgErrorInvalidLimit}
		}
		req.Limit = n
	}
	before, err := feed.ParseCursor(req.Cursor)
	if err != nil {
		return req, &requestError{msgID: locales.MsgErrorInvalidCursor}
	}
	req.Before = before
	return req, nil
}

func (s *Server) parseStatsRequest(r *http.Request) (statsRequest, error) {
	req := statsRequest{Channel: s.channelParam(r)}
	if err := s.validate.Struct(req); err != nil {
		return req, &requestError{msgID: locales.MsgErrorInvalidChannel}
	}
	return req, nil
}
