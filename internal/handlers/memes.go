package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/memeboard/internal/db"
	"github.com/4xmen/memeboard/internal/events"
	"github.com/4xmen/memeboard/internal/storage"
	"github.com/4xmen/memeboard/pkg/models"
)

const popularityOrder = " ORDER BY (m.likes + m.comment_count) DESC, m.created_at DESC, m.id DESC"

type MemeHandler struct {
	db            *sql.DB
	storage       storage.Backend
	publisher     events.Publisher
	maxUploadSize int64
}

func NewMemeHandler(conn *sql.DB, store storage.Backend, publisher events.Publisher, maxUploadSize int64) *MemeHandler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &MemeHandler{db: conn, storage: store, publisher: publisher, maxUploadSize: maxUploadSize}
}

// GetMemes returns the main feed sorted by popularity. page and limit are
// optional; without limit every meme is returned.
func (h *MemeHandler) GetMemes(c *gin.Context) {
	limit := int64(-1)
	offset := int64(0)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n

		page := int64(1)
		if rawPage := c.Query("page"); rawPage != "" {
			page, err = strconv.ParseInt(rawPage, 10, 64)
			if err != nil || page <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
				return
			}
		}
		offset = (page - 1) * limit
	}

	rows, err := h.db.Query(
		"SELECT "+db.MemeColumns+db.MemeFrom+popularityOrder+" LIMIT ? OFFSET ?",
		c.Query("viewer"), limit, offset,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch memes"})
		return
	}
	memes, err := db.CollectMemes(rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to scan memes"})
		return
	}
	c.JSON(http.StatusOK, memes)
}

func (h *MemeHandler) GetMeme(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	meme, err := h.loadMeme(id, c.Query("viewer"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meme not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch meme"})
		return
	}
	c.JSON(http.StatusOK, meme)
}

// GetFollowingFeed returns memes by the wallets the given wallet follows
func (h *MemeHandler) GetFollowingFeed(c *gin.Context) {
	address := c.Param("wallet")
	rows, err := h.db.Query(
		"SELECT "+db.MemeColumns+db.MemeFrom+`
		WHERE m.evm_address IN (SELECT following_id FROM follows WHERE follower_id = ?)
		ORDER BY m.created_at DESC, m.id DESC`,
		address, address,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch feed"})
		return
	}
	memes, err := db.CollectMemes(rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to scan feed"})
		return
	}
	c.JSON(http.StatusOK, memes)
}

// Upload accepts a multipart form with either an image file or an image_url
func (h *MemeHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	if err := c.Request.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	caption := strings.TrimSpace(c.PostForm("caption"))
	tags := models.JoinTags(models.SplitTags(c.PostForm("tags")))
	imageURL := strings.TrimSpace(c.PostForm("image_url"))
	mediaType := strings.TrimSpace(c.PostForm("media_type"))

	var evmAddress *string
	if addr := strings.TrimSpace(c.PostForm("evm_address")); addr != "" {
		evmAddress = &addr
	}

	if mediaType != "" && mediaType != models.MediaTypeImage && mediaType != models.MediaTypeVideo {
		c.JSON(http.StatusBadRequest, gin.H{"error": "media_type must be image or video"})
		return
	}

	var stored string
	if file, err := c.FormFile("image"); err == nil {
		url, contentType, err := h.saveUpload(c.Request.Context(), file)
		if err != nil {
			log.Printf("memes: failed to store upload name=%s error=%v", file.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
			return
		}
		imageURL, stored = url, url
		if mediaType == "" {
			mediaType = storage.MediaType(contentType)
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image field"})
		return
	}

	if imageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image or image_url is required"})
		return
	}
	if mediaType == "" {
		mediaType = models.MediaTypeImage
	}

	var video *string
	if mediaType == models.MediaTypeVideo {
		video = &imageURL
	}

	res, err := h.db.Exec(`
		INSERT INTO memes (caption, tags, image, video, media_type, evm_address)
		VALUES (?, ?, ?, ?, ?, ?)
	`, caption, tags, imageURL, video, mediaType, evmAddress)
	if err != nil {
		log.Printf("memes: failed to insert meme error=%v", err)
		if stored != "" {
			if err := h.storage.Delete(c.Request.Context(), stored); err != nil {
				log.Printf("memes: failed to delete orphaned media url=%s error=%v", stored, err)
			}
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save meme"})
		return
	}
	id, _ := res.LastInsertId()

	meme, err := h.loadMeme(id, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load meme"})
		return
	}

	actor := ""
	if evmAddress != nil {
		actor = *evmAddress
	}
	publish(c.Request.Context(), h.publisher, events.Event{
		Type:       events.MemeUploaded,
		ActorID:    actor,
		SubjectID:  strconv.FormatInt(id, 10),
		Attributes: map[string]any{"media_type": mediaType, "tags": models.SplitTags(tags)},
	})

	log.Printf("memes: uploaded id=%d media_type=%s creator=%s", id, mediaType, actor)
	c.JSON(http.StatusOK, meme)
}

func (h *MemeHandler) saveUpload(ctx context.Context, file *multipart.FileHeader) (url, contentType string, err error) {
	src, err := file.Open()
	if err != nil {
		return "", "", err
	}
	defer src.Close()

	name := storage.GenerateFilename(file.Filename)
	contentType = storage.ContentType(name)
	url, err = h.storage.Save(ctx, name, contentType, src, file.Size)
	return url, contentType, err
}

// Delete removes a meme with its likes, comments and stored media
func (h *MemeHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	meme, err := h.loadMeme(id, "")
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meme not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch meme"})
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete meme"})
		return
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM meme_likes WHERE meme_id = ?",
		"DELETE FROM comments WHERE meme_id = ?",
		"DELETE FROM memes WHERE id = ?",
	} {
		if _, err := tx.Exec(q, id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete meme"})
			return
		}
	}
	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete meme"})
		return
	}

	if err := h.storage.Delete(c.Request.Context(), meme.Image); err != nil {
		log.Printf("memes: failed to delete media id=%d url=%s error=%v", id, meme.Image, err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// Like increments the like count. With a user_id each user counts once.
func (h *MemeHandler) Like(c *gin.Context) {
	h.toggleLike(c, true)
}

// Unlike decrements the like count, never below zero
func (h *MemeHandler) Unlike(c *gin.Context) {
	h.toggleLike(c, false)
}

func (h *MemeHandler) toggleLike(c *gin.Context, like bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.LikeRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingError(err)})
		return
	}

	changed, err := h.applyLike(id, req.UserID, like)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meme not found"})
		return
	}
	if err != nil {
		log.Printf("memes: like failed id=%d user=%s error=%v", id, req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update like"})
		return
	}

	meme, err := h.loadMeme(id, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load meme"})
		return
	}

	if changed {
		eventType := events.MemeLiked
		if !like {
			eventType = events.MemeUnliked
		}
		publish(c.Request.Context(), h.publisher, events.Event{
			Type:       eventType,
			ActorID:    req.UserID,
			SubjectID:  strconv.FormatInt(id, 10),
			Attributes: map[string]any{"likes": meme.Likes},
		})
	}

	c.JSON(http.StatusOK, meme)
}

// applyLike reports whether the stored count moved. It returns sql.ErrNoRows
// for an unknown meme.
func (h *MemeHandler) applyLike(memeID int64, userID string, like bool) (bool, error) {
	tx, err := h.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow("SELECT EXISTS(SELECT 1 FROM memes WHERE id = ?)", memeID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, sql.ErrNoRows
	}

	changed := true
	if userID != "" {
		q := "INSERT OR IGNORE INTO meme_likes (meme_id, user_id) VALUES (?, ?)"
		if !like {
			q = "DELETE FROM meme_likes WHERE meme_id = ? AND user_id = ?"
		}
		res, err := tx.Exec(q, memeID, userID)
		if err != nil {
			return false, err
		}
		n, _ := res.RowsAffected()
		changed = n > 0
	}

	if changed {
		q := "UPDATE memes SET likes = likes + 1 WHERE id = ?"
		if !like {
			q = "UPDATE memes SET likes = MAX(likes - 1, 0) WHERE id = ?"
		}
		if _, err := tx.Exec(q, memeID); err != nil {
			return false, err
		}
	}

	return changed, tx.Commit()
}

func (h *MemeHandler) loadMeme(id int64, viewer string) (*models.Meme, error) {
	return db.ScanMeme(h.db.QueryRow("SELECT "+db.MemeColumns+db.MemeFrom+" WHERE m.id = ?", viewer, id))
}

// publish logs instead of failing the request when the broker is unavailable
func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if err := p.Publish(ctx, e); err != nil {
		log.Printf("events: failed to publish type=%s subject=%s error=%v", e.Type, e.SubjectID, err)
	}
}
