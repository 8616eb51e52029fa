package notify

import (
	"context"
	"log"
	"net/http"
	"time"

	"craftriver/db"
	"craftriver/globals"
	"craftriver/models"
	"craftriver/utils"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Create records a notification for userID. Failures are logged and swallowed
// so a broken notification never fails the action that triggered it.
func Create(ctx context.Context, userID, kind, message, relatedID string) {
	n := models.Notification{
		NotificationID: uuid.New().String(),
		UserID:         userID,
		Type:           kind,
		Message:        message,
		RelatedID:      relatedID,
		CreatedAt:      time.Now(),
	}
	if _, err := db.NotificationsCollection.InsertOne(ctx, n); err != nil {
		log.Printf("notify: insert for %s failed: %v", userID, err)
	}
}

// GetNotifications handles GET /api/notifications, newest first.
func GetNotifications(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(100)
	cur, err := db.NotificationsCollection.Find(ctx, bson.M{"userid": userID}, opts)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch notifications")
		return
	}
	defer cur.Close(ctx)

	notifications := []models.Notification{}
	if err := cur.All(ctx, &notifications); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode notifications")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, notifications)
}

// MarkRead handles PUT /api/notifications/:id/read.
func MarkRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	res, err := db.NotificationsCollection.UpdateOne(r.Context(),
		bson.M{"notificationid": ps.ByName("id"), "userid": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update notification")
		return
	}
	if res.MatchedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "Notification not found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}

// MarkAllRead handles PUT /api/notifications/read.
func MarkAllRead(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	if _, err := db.NotificationsCollection.UpdateMany(r.Context(),
		bson.M{"userid": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update notifications")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}
