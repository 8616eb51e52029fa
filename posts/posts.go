package posts

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"craftriver/db"
	"craftriver/globals"
	"craftriver/media"
	"craftriver/models"
	"craftriver/mq"
	"craftriver/utils"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const maxFormMemory = 64 << 20

// Handler carries the media pipeline into the post endpoints.
type Handler struct {
	Ingest *media.Ingestor
	Clean  *media.Cleaner
}

// CreatePost handles POST /api/posts: multipart content + images[] + optional
// video. All attachments are validated before any byte reaches the store.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Unable to parse form")
		return
	}

	content := strings.TrimSpace(r.FormValue("content"))
	var images []*multipart.FileHeader
	var video *multipart.FileHeader
	if r.MultipartForm != nil {
		images = r.MultipartForm.File["images"]
		if v := r.MultipartForm.File["video"]; len(v) > 0 {
			video = v[0]
		}
	}

	if content == "" && len(images) == 0 && video == nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Post must have content, images, or a video")
		return
	}

	// Whole-batch validation first so a bad file rejects the request before
	// any upload happens.
	if video != nil {
		if err := h.Ingest.Validate(video, media.KindVideo, media.PostPolicy); err != nil {
			respondIngestError(w, err)
			return
		}
	}
	for _, img := range images {
		if err := h.Ingest.Validate(img, media.KindImage, media.PostPolicy); err != nil {
			respondIngestError(w, err)
			return
		}
	}

	ctx := r.Context()
	post := models.Post{
		PostID:         uuid.New().String(),
		UserID:         userID,
		Content:        content,
		CreatedAt:      time.Now(),
		Comments:       []models.Comment{},
		UserReactions:  map[string]string{},
		ReactionCounts: map[string]int{},
	}

	var uploaded []string
	if video != nil {
		file, err := video.Open()
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Error reading video file")
			return
		}
		videoID, err := h.Ingest.Ingest(ctx, file, video, media.KindVideo, media.PostPolicy)
		file.Close()
		if err != nil {
			respondIngestError(w, err)
			return
		}
		uploaded = append(uploaded, videoID)
		post.VideoURL = media.Ref(videoID)
	}

	if len(images) > 0 {
		imageIDs, err := h.Ingest.IngestBatch(ctx, images, media.KindImage, media.PostPolicy)
		if err != nil {
			// The batch cleans up after itself; the video is ours to drop.
			h.Clean.OnOwnerDeleted(ctx, uploaded)
			respondIngestError(w, err)
			return
		}
		uploaded = append(uploaded, imageIDs...)
		post.ImageURLs = media.Refs(imageIDs)
	}
	post.MediaIDs = uploaded

	if _, err := db.PostsCollection.InsertOne(ctx, post); err != nil {
		h.Clean.OnOwnerDeleted(ctx, uploaded)
		utils.RespondWithError(w, http.StatusInternalServerError, "Error saving post")
		return
	}

	go mq.Emit(globals.Ctx, "post-created", mq.Index{EntityType: "post", EntityId: post.PostID, Method: "POST"})
	utils.RespondWithJSON(w, http.StatusOK, decorate(ctx, post, userID))
}

// GetAllPosts handles GET /api/posts.
func (h *Handler) GetAllPosts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	viewerID, _ := r.Context().Value(globals.UserIDKey).(string)

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := db.PostsCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch posts")
		return
	}
	defer cur.Close(ctx)

	responses := []models.PostResponse{}
	for cur.Next(ctx) {
		var post models.Post
		if err := cur.Decode(&post); err != nil {
			continue
		}
		responses = append(responses, decorate(ctx, post, viewerID))
	}
	utils.RespondWithJSON(w, http.StatusOK, responses)
}

// GetUserPosts handles GET /api/posts/user/:userid.
func (h *Handler) GetUserPosts(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	viewerID, _ := r.Context().Value(globals.UserIDKey).(string)

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := db.PostsCollection.Find(ctx, bson.M{"userid": ps.ByName("userid")}, opts)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch posts")
		return
	}
	defer cur.Close(ctx)

	responses := []models.PostResponse{}
	for cur.Next(ctx) {
		var post models.Post
		if err := cur.Decode(&post); err != nil {
			continue
		}
		responses = append(responses, decorate(ctx, post, viewerID))
	}
	utils.RespondWithJSON(w, http.StatusOK, responses)
}

// UpdatePost handles PUT /api/posts/:postid. New images replace the old set;
// old blobs are deleted only after the record points at the new ones.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Unable to parse form")
		return
	}

	ctx := r.Context()
	postID := ps.ByName("postid")

	var post models.Post
	if err := db.PostsCollection.FindOne(ctx, bson.M{"postid": postID}).Decode(&post); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Post not found")
		return
	}
	if post.UserID != userID {
		utils.RespondWithError(w, http.StatusForbidden, "You can only update your own posts")
		return
	}

	update := bson.M{
		"content":   strings.TrimSpace(r.FormValue("content")),
		"updatedAt": time.Now(),
	}

	var images []*multipart.FileHeader
	if r.MultipartForm != nil {
		images = r.MultipartForm.File["images"]
	}

	oldIDs := post.MediaIDs
	newIDs := oldIDs
	if len(images) > 0 {
		imageIDs, err := h.Ingest.IngestBatch(ctx, images, media.KindImage, media.PostPolicy)
		if err != nil {
			respondIngestError(w, err)
			return
		}
		// The video, if any, is carried over; only images are replaced.
		newIDs = imageIDs
		if post.VideoURL != "" {
			newIDs = append([]string{media.IDFromRef(post.VideoURL)}, imageIDs...)
		}
		update["mediaIds"] = newIDs
		update["imageUrls"] = media.Refs(imageIDs)
	}

	if err := db.PostsCollection.FindOneAndUpdate(ctx,
		bson.M{"postid": postID},
		bson.M{"$set": update},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&post); err != nil {
		// The record still references the old blobs; drop the new uploads.
		if len(images) > 0 {
			h.Clean.OnOwnerMediaReplaced(ctx, newIDs, oldIDs)
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating post")
		return
	}

	// Record committed; now the stale blobs can go.
	if len(images) > 0 {
		h.Clean.OnOwnerMediaReplaced(ctx, oldIDs, newIDs)
	}

	go mq.Emit(globals.Ctx, "post-updated", mq.Index{EntityType: "post", EntityId: postID, Method: "PUT"})
	utils.RespondWithJSON(w, http.StatusOK, decorate(ctx, post, userID))
}

// DeletePost handles DELETE /api/posts/:postid. The record goes first; blob
// cleanup is best-effort and never blocks the delete.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	ctx := r.Context()
	postID := ps.ByName("postid")

	var post models.Post
	if err := db.PostsCollection.FindOne(ctx, bson.M{"postid": postID}).Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			utils.RespondWithError(w, http.StatusNotFound, "Post not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if post.UserID != userID {
		utils.RespondWithError(w, http.StatusForbidden, "You can only delete your own posts")
		return
	}

	if _, err := db.PostsCollection.DeleteOne(ctx, bson.M{"postid": postID}); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting post")
		return
	}

	h.Clean.OnOwnerDeleted(ctx, post.MediaIDs)

	go mq.Emit(globals.Ctx, "post-deleted", mq.Index{EntityType: "post", EntityId: postID, Method: "DELETE"})
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}

func respondIngestError(w http.ResponseWriter, err error) {
	if errors.Is(err, media.ErrInvalid) {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save media")
}

// decorate attaches author details and viewer-specific reaction state.
func decorate(ctx context.Context, post models.Post, viewerID string) models.PostResponse {
	resp := models.PostResponse{Post: post, UserName: "Unknown User"}

	var author models.User
	if err := db.UserCollection.FindOne(ctx, bson.M{"userid": post.UserID}).Decode(&author); err == nil {
		resp.UserName = strings.TrimSpace(author.FirstName + " " + author.LastName)
		resp.UserProfilePicture = author.ProfilePicture
	}
	resp.LikeCount = len(post.LikedBy)
	if viewerID != "" {
		for _, id := range post.LikedBy {
			if id == viewerID {
				resp.IsLiked = true
				break
			}
		}
	}
	return resp
}
