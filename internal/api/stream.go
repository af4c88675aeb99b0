package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// writeTimeout bounds each websocket write so one stuck client cannot pin a
// goroutine.
const writeTimeout = 5 * time.Second

// handleStream upgrades to a websocket and forwards hub events. Clients pick
// topics with ?topics=sensor.alert,fleet.location; no filter means all
// topics. Slow clients miss events rather than blocking the feed.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	var topics []string
	if raw := r.URL.Query().Get("topics"); raw != "" {
		for _, topic := range strings.Split(raw, ",") {
			if topic = strings.TrimSpace(topic); topic != "" {
				topics = append(topics, topic)
			}
		}
	}

	sub := s.hub.Subscribe(topics...)
	defer sub.Close()

	if s.metrics != nil {
		s.metrics.StreamClientsActive.Inc()
		defer s.metrics.StreamClientsActive.Dec()
	}

	s.logger.Info("stream client connected", "topics", topics)

	// The client never sends data frames; CloseRead surfaces disconnects as
	// context cancellation.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("stream client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event, ok := <-sub.C:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "feed closed")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				s.logger.Debug("stream write failed", "error", err)
				return
			}
		}
	}
}
