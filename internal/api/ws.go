package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/bnema/rulekit/internal/logging"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: checkOrigin,
	}
)

func checkOrigin(r *http.Request) bool {
	return true
}

// watch streams rules-changed events until the client goes away
func (s *Server) watch(c echo.Context) error {
	notifier := s.registry.Notifier()
	ch := notifier.Subscribe()
	defer notifier.Unsubscribe(ch)

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	log := logging.FromContext(c.Request().Context())

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("event client disconnected")
				return nil
			}
		}
	}
}
