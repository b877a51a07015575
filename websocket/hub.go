package websocket

import (
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/orchardhire/marketplace/database"
	"github.com/orchardhire/marketplace/models"
)

type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
}

type MessagePayload struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

var clients = make(map[uuid.UUID]*websocket.Conn)
var clientsMu sync.RWMutex
var Register = make(chan *Client)
var Unregister = make(chan *Client)
var Broadcast = make(chan *models.Message)

// RunHub relays persisted messages to the other party of the conversation.
// The participant pair lives on the conversation row itself, so delivery is a
// single lookup plus OtherParticipant.
func RunHub() {
	for {
		select {
		case client := <-Register:
			log.Printf("Chat client registered: %s", client.UserID)
			clientsMu.Lock()
			clients[client.UserID] = client.Conn
			clientsMu.Unlock()
		case client := <-Unregister:
			log.Printf("Chat client unregistered: %s", client.UserID)
			clientsMu.Lock()
			if conn, ok := clients[client.UserID]; ok && conn == client.Conn {
				delete(clients, client.UserID)
			}
			clientsMu.Unlock()
		case message := <-Broadcast:
			var conversation models.Conversation
			if err := database.DB.First(&conversation, "id = ?", message.ConversationID).Error; err != nil {
				log.Printf("Error loading conversation %s for broadcast: %v", message.ConversationID, err)
				continue
			}

			recipientID := conversation.OtherParticipant(message.SenderID)
			clientsMu.RLock()
			conn, ok := clients[recipientID]
			clientsMu.RUnlock()
			if !ok {
				continue
			}

			if err := conn.WriteJSON(message); err != nil {
				log.Printf("Error sending message to client %s: %v", recipientID, err)
				conn.Close()
				clientsMu.Lock()
				delete(clients, recipientID)
				clientsMu.Unlock()
			}
		}
	}
}
