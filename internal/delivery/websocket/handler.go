package websocket

import (
	"log"
	"net/http"
	"time"

	"simtrader-backend/internal/domain"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Handler streams the latest screening scores to connected clients.
type Handler struct {
	repo domain.ScreenerRepository
}

func NewHandler(repo domain.ScreenerRepository) *Handler {
	return &Handler{
		repo: repo,
	}
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer conn.Close()

	log.Println("New Client Connected")

	// Send initial data immediately
	scores, err := h.repo.LatestScores(r.Context())
	if err == nil {
		if err := conn.WriteJSON(scores); err != nil {
			log.Println("Write error:", err)
			return
		}
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			scores, err := h.repo.LatestScores(r.Context())
			if err != nil {
				log.Println("Read scores error:", err)
				continue
			}
			if err := conn.WriteJSON(scores); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
