package posts

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"craftriver/db"
	"craftriver/globals"
	"craftriver/models"
	"craftriver/utils"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type commentInput struct {
	Content string `json:"content"`
}

// AddComment handles POST /api/posts/:postid/comments.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	var input commentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	input.Content = strings.TrimSpace(input.Content)
	if input.Content == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Comment cannot be empty")
		return
	}

	ctx := r.Context()

	var author models.User
	authorName := "Unknown User"
	if err := db.UserCollection.FindOne(ctx, bson.M{"userid": userID}).Decode(&author); err == nil {
		authorName = strings.TrimSpace(author.FirstName + " " + author.LastName)
	}

	comment := models.Comment{
		CommentID:  uuid.New().String(),
		AuthorID:   userID,
		AuthorName: authorName,
		Content:    input.Content,
		CreatedAt:  time.Now(),
	}

	res, err := db.PostsCollection.UpdateOne(ctx,
		bson.M{"postid": ps.ByName("postid")},
		bson.M{"$push": bson.M{"comments": comment}},
	)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error adding comment")
		return
	}
	if res.MatchedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "Post not found")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, comment)
}

// UpdateComment handles PUT /api/posts/:postid/comments/:commentid. Only the
// comment's author can edit it.
func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	var input commentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	input.Content = strings.TrimSpace(input.Content)
	if input.Content == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Comment cannot be empty")
		return
	}

	ctx := r.Context()
	now := time.Now()

	var post models.Post
	err := db.PostsCollection.FindOneAndUpdate(ctx,
		bson.M{
			"postid": ps.ByName("postid"),
			"comments": bson.M{"$elemMatch": bson.M{
				"commentid": ps.ByName("commentid"),
				"authorId":  userID,
			}},
		},
		bson.M{"$set": bson.M{
			"comments.$.content":   input.Content,
			"comments.$.updatedAt": now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&post)
	if err == mongo.ErrNoDocuments {
		// Distinguish "not yours" from "not there".
		count, _ := db.PostsCollection.CountDocuments(ctx, bson.M{
			"postid":             ps.ByName("postid"),
			"comments.commentid": ps.ByName("commentid"),
		})
		if count > 0 {
			utils.RespondWithError(w, http.StatusForbidden, "You can only edit your own comments")
			return
		}
		utils.RespondWithError(w, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating comment")
		return
	}

	for _, c := range post.Comments {
		if c.CommentID == ps.ByName("commentid") {
			utils.RespondWithJSON(w, http.StatusOK, c)
			return
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}

// DeleteComment handles DELETE /api/posts/:postid/comments/:commentid. The
// comment author and the post owner can both remove a comment.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	ctx := r.Context()
	postID := ps.ByName("postid")
	commentID := ps.ByName("commentid")

	var post models.Post
	if err := db.PostsCollection.FindOne(ctx, bson.M{"postid": postID}).Decode(&post); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Post not found")
		return
	}

	var target *models.Comment
	for i := range post.Comments {
		if post.Comments[i].CommentID == commentID {
			target = &post.Comments[i]
			break
		}
	}
	if target == nil {
		utils.RespondWithError(w, http.StatusNotFound, "Comment not found")
		return
	}
	if target.AuthorID != userID && post.UserID != userID {
		utils.RespondWithError(w, http.StatusForbidden, "Not allowed to delete this comment")
		return
	}

	if _, err := db.PostsCollection.UpdateOne(ctx,
		bson.M{"postid": postID},
		bson.M{"$pull": bson.M{"comments": bson.M{"commentid": commentID}}},
	); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting comment")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}
