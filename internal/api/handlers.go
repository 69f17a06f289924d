package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"tgfeed/internal/feed"
	"tgfeed/internal/locales"
	"tgfeed/internal/logging"
)

// postsResponse is the body of GET /api/posts.
type postsResponse struct {
	Items      []feed.Post `json:"items"`
	NextCursor *string     `json:"next_cursor"`
}

// statsResponse is the body of GET /api/stats. The legacy widget fields
// channel_username and subscribers_count repeat channel and count.
type statsResponse struct {
	Channel          string     `json:"channel"`
	Count            *int64     `json:"count"`
	UpdatedAt        *time.Time `json:"updated_at"`
	Source           *string    `json:"source"`
	ChannelUsername  string     `json:"channel_username"`
	SubscribersCount *int64     `json:"subscribers_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	req, err := s.parsePostsRequest(r)
	if err != nil {
		s.respondRequestError(w, r, err)
		return
	}
	page, err := s.deps.Feed.GetPage(r.Context(), req.Channel, req.Limit, req.Before)
	if err != nil {
		logging.CaptureError(s.log, fmt.Errorf("get page of %s: %w", req.Channel, err), "failed to load posts")
		s.respondError(w, r, http.StatusInternalServerError, locales.MsgErrorInternal)
		return
	}

	resp := postsResponse{Items: page.Items}
	if resp.Items == nil {
		resp.Items = []feed.Post{}
	}
	if page.NextCursor != nil {
		c := feed.FormatCursor(*page.NextCursor)
		resp.NextCursor = &c
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseStatsRequest(r)
	if err != nil {
		s.respondRequestError(w, r, err)
		return
	}

	res, err := s.deps.Stats.GetStats(r.Context(), req.Channel)
	if err != nil {
		logging.CaptureError(s.log, fmt.Errorf("get stats of %s: %w", req.Channel, err), "failed to load stats")
		s.respondError(w, r, http.StatusInternalServerError, locales.MsgErrorInternal)
		return
	}

	resp := statsResponse{
		Channel:          req.Channel,
		Count:            res.Count,
		UpdatedAt:        res.UpdatedAt,
		ChannelUsername:  req.Channel,
		SubscribersCount: res.Count,
	}
	if res.Source != "" {
		src := string(res.Source)
		resp.Source = &src
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondRequestError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		s.respondError(w, r, http.StatusBadRequest, reqErr.msgID)
		return
	}
	s.respondError(w, r, http.StatusBadRequest, locales.MsgErrorInvalidChannel)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	s.respondJSON(w, status, errorResponse{
		Error: locales.Message(r.Header.Get("Accept-Language"), msgID),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
