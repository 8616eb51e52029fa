package msgs

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"craftriver/db"
	"craftriver/globals"
	"craftriver/models"
	"craftriver/notify"
	"craftriver/utils"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Handler serves the direct-message endpoints and owns the websocket hub.
type Handler struct {
	Hub *Hub
}

type sendInput struct {
	ReceiverID string `json:"receiverId"`
	ProductID  string `json:"productId,omitempty"`
	Content    string `json:"content"`
	MediaURL   string `json:"mediaUrl,omitempty"`
}

// wsEvent is the payload pushed over the websocket.
type wsEvent struct {
	Event   string         `json:"event"`
	Message models.Message `json:"message"`
}

// SendMessage handles POST /api/messages. The message is persisted first;
// the websocket push and notification are best-effort extras.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	senderID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || senderID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	var input sendInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	input.Content = strings.TrimSpace(input.Content)
	if input.ReceiverID == "" || (input.Content == "" && input.MediaURL == "") {
		utils.RespondWithError(w, http.StatusBadRequest, "Receiver and content are required")
		return
	}
	if input.ReceiverID == senderID {
		utils.RespondWithError(w, http.StatusBadRequest, "Cannot message yourself")
		return
	}

	ctx := r.Context()

	if err := db.UserCollection.FindOne(ctx, bson.M{"userid": input.ReceiverID}).Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "Receiver not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	// Buyer inquiries carry the product they are about.
	if input.ProductID != "" {
		if err := db.ProductsCollection.FindOne(ctx, bson.M{"productid": input.ProductID}).Err(); err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithError(w, http.StatusNotFound, "Product not found")
				return
			}
			utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	msg := models.Message{
		MessageID:  uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: input.ReceiverID,
		ProductID:  input.ProductID,
		Content:    input.Content,
		MediaURL:   input.MediaURL,
		CreatedAt:  time.Now(),
	}
	if _, err := db.MessagesCollection.InsertOne(ctx, msg); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error saving message")
		return
	}

	if data, err := json.Marshal(wsEvent{Event: "message", Message: msg}); err == nil {
		h.Hub.Push(input.ReceiverID, data)
	}
	notify.Create(ctx, input.ReceiverID, "message", "You have a new message", msg.MessageID)

	utils.RespondWithJSON(w, http.StatusCreated, msg)
}

// GetConversation handles GET /api/messages/:userid: both directions between
// the caller and the named user, oldest first.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}
	otherID := ps.ByName("userid")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter := bson.M{"$or": []bson.M{
		{"senderId": userID, "receiverId": otherID},
		{"senderId": otherID, "receiverId": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(200)
	cur, err := db.MessagesCollection.Find(ctx, filter, opts)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	defer cur.Close(ctx)

	messages := []models.Message{}
	if err := cur.All(ctx, &messages); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode messages")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, messages)
}

// conversationHead is one row in the conversation list.
type conversationHead struct {
	UserID      string         `json:"userid"`
	LastMessage models.Message `json:"lastMessage"`
	UnreadCount int            `json:"unreadCount"`
}

// ListConversations handles GET /api/messages: one entry per correspondent,
// most recent first.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter := bson.M{"$or": []bson.M{{"senderId": userID}, {"receiverId": userID}}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(500)
	cur, err := db.MessagesCollection.Find(ctx, filter, opts)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	defer cur.Close(ctx)

	heads := []conversationHead{}
	index := map[string]int{}
	for cur.Next(ctx) {
		var msg models.Message
		if err := cur.Decode(&msg); err != nil {
			continue
		}
		other := msg.SenderID
		if other == userID {
			other = msg.ReceiverID
		}
		i, seen := index[other]
		if !seen {
			index[other] = len(heads)
			heads = append(heads, conversationHead{UserID: other, LastMessage: msg})
			i = index[other]
		}
		if msg.ReceiverID == userID && !msg.Read {
			heads[i].UnreadCount++
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, heads)
}

// MarkConversationRead handles PUT /api/messages/:userid/read: everything the
// named user sent to the caller becomes read.
func (h *Handler) MarkConversationRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	res, err := db.MessagesCollection.UpdateMany(r.Context(),
		bson.M{"senderId": ps.ByName("userid"), "receiverId": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update messages")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"updated": res.ModifiedCount})
}
