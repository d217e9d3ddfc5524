package handlers

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"
	"go.uber.org/zap"

	"github.com/LovationAdmin/expense-api/services"
	"github.com/LovationAdmin/expense-api/utils"
)

// WSHandler pushes change notifications to each user's open sockets.
type WSHandler struct {
	M      *melody.Melody
	ledger *services.Ledger
	logger *zap.Logger
}

type changeMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

func NewWSHandler(ledger *services.Ledger, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := melody.New()

	m.Config.MaxMessageSize = 1024

	// Keep-alive for hosts that drop idle connections.
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	h := &WSHandler{M: m, ledger: ledger, logger: logger}

	m.HandleConnect(func(s *melody.Session) {
		userID, _ := s.Get("user_id")
		logger.Debug("websocket connected", zap.String("user_id", utils.MaskID(toString(userID))))
	})
	m.HandleDisconnect(func(s *melody.Session) {
		userID, _ := s.Get("user_id")
		logger.Debug("websocket disconnected", zap.String("user_id", utils.MaskID(toString(userID))))
	})
	m.HandleError(func(s *melody.Session, err error) {
		logger.Warn("websocket error", zap.Error(err))
	})

	return h
}

// HandleWS upgrades an authenticated request. Browsers cannot set headers
// on a websocket handshake, so the token may also come as access_token.
func (h *WSHandler) HandleWS(c *gin.Context) {
	token := services.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = c.Query("access_token")
	}

	user, err := h.ledger.Authenticate(c.Request.Context(), token)
	if err != nil {
		RespondError(c, SurfaceLedger, err)
		return
	}

	err = h.M.HandleRequestWithKeys(c.Writer, c.Request, map[string]any{"user_id": user.ID})
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", zap.Error(err))
	}
}

// TransactionsChanged implements services.ChangeNotifier.
func (h *WSHandler) TransactionsChanged(userID, action string) {
	msg, err := json.Marshal(changeMessage{Type: "transactions_changed", Action: action})
	if err != nil {
		return
	}

	err = h.M.BroadcastFilter(msg, func(s *melody.Session) bool {
		id, exists := s.Get("user_id")
		return exists && id == userID
	})
	if err != nil {
		h.logger.Warn("broadcast failed",
			zap.String("user_id", utils.MaskID(userID)),
			zap.Error(err))
	}
}

// Close disconnects every socket.
func (h *WSHandler) Close() error {
	return h.M.Close()
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}
