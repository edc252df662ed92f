package controllers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/postdesk/config"
	"github.com/cppla/postdesk/models"
	"github.com/cppla/postdesk/query"
	"github.com/cppla/postdesk/storage"
	"github.com/cppla/postdesk/store"
	"github.com/cppla/postdesk/utils"
	"github.com/cppla/postdesk/validation"
)

const recentLimit = 5

// PostController manages CRUD operations for posts.
type PostController struct {
	store *store.Store
	log   *zap.Logger
}

// NewPostController creates a new PostController instance.
func NewPostController(s *store.Store, log *zap.Logger) *PostController {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostController{store: s, log: log}
}

// nullableString tells an explicit null apart from an absent field.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

type postRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Content     *string        `json:"content"`
	Category    *string        `json:"category"`
	Author      *string        `json:"author"`
	Image       nullableString `json:"image"`
	PublishDate *time.Time     `json:"publishDate"`
	Status      *models.Status `json:"status"`
}

// fields converts the request into store fields. Plain text fields are
// trimmed; content is stored exactly as sent and only sanitized on render.
func (r postRequest) fields() models.PostFields {
	text := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := strings.TrimSpace(*s)
		return &v
	}
	f := models.PostFields{
		Title:       text(r.Title),
		Description: text(r.Description),
		Content:     r.Content,
		Category:    text(r.Category),
		Author:      text(r.Author),
		PublishDate: r.PublishDate,
		Status:      r.Status,
	}
	if r.Image.Set {
		if r.Image.Value == nil || strings.TrimSpace(*r.Image.Value) == "" {
			f.ClearImage = true
		} else {
			v := strings.TrimSpace(*r.Image.Value)
			f.Image = &v
		}
	}
	return f
}

func validStatus(s *models.Status) bool {
	return s == nil || *s == models.StatusDraft || *s == models.StatusPublished
}

// ListPosts returns the filtered, sorted and paginated visible posts.
func (p *PostController) ListPosts(ctx *gin.Context) {
	filters := models.Filters{
		Category: strings.TrimSpace(ctx.Query("category")),
		Status:   models.Status(strings.TrimSpace(ctx.Query("status"))),
		SortBy:   models.SortBy(strings.TrimSpace(ctx.DefaultQuery("sort", string(models.SortNewest)))),
	}
	if filters.Status != "" && !validStatus(&filters.Status) {
		utils.Error(ctx, http.StatusBadRequest, 40022, "status must be draft or published")
		return
	}

	prefs, err := p.store.Pagination(ctx.Request.Context())
	if err != nil {
		p.log.Warn("load pagination prefs failed", zap.Error(err))
	}
	page, pageSize, ok := parsePagination(ctx.Query("page"), ctx.Query("page_size"), prefs)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40023, "page and page_size must be positive integers")
		return
	}

	results := query.Query(p.store.Visible(), ctx.Query("search"), filters)
	paged, err := query.Paginate(results, page, pageSize)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40023, err.Error())
		return
	}

	utils.Success(ctx, gin.H{
		"items": paged.Items,
		"pagination": gin.H{
			"page":        paged.Page,
			"page_size":   paged.PageSize,
			"total":       paged.Total,
			"total_pages": paged.TotalPages,
			"has_next":    paged.HasNext,
			"has_prev":    paged.HasPrev,
		},
	})
}

// RecentPosts returns the newest visible posts for the dashboard.
func (p *PostController) RecentPosts(ctx *gin.Context) {
	limit := recentLimit
	if v, err := strconv.Atoi(ctx.Query("limit")); err == nil && v > 0 && v <= 50 {
		limit = v
	}
	utils.Success(ctx, gin.H{"items": p.store.Recent(limit)})
}

// GetPost returns a single visible post together with its content rendered
// as sanitized HTML.
func (p *PostController) GetPost(ctx *gin.Context) {
	post, err := p.store.Get(ctx.Param("id"))
	if err != nil {
		p.respondError(ctx, err, nil)
		return
	}
	utils.Success(ctx, gin.H{
		"post":         post,
		"content_html": utils.Sanitize(post.Content),
	})
}

// CreatePost validates and stores a new post.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if !validStatus(req.Status) {
		utils.Error(ctx, http.StatusBadRequest, 40022, "status must be draft or published")
		return
	}

	fields := req.fields()
	if fields.Author == nil || *fields.Author == "" {
		// follows config reloads
		author := config.Get().DefaultAuthor
		fields.Author = &author
	}

	var candidate models.Post
	fields.Apply(&candidate)
	if err := validateCandidate(candidate); err != nil {
		p.respondError(ctx, err, nil)
		return
	}

	post, err := p.store.Create(ctx.Request.Context(), fields)
	if err != nil {
		p.respondError(ctx, err, &post)
		return
	}
	utils.Created(ctx, gin.H{"post": post})
}

// UpdatePost merges the supplied fields into an existing post. PUT and PATCH
// share these semantics: absent fields keep their value.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	id := ctx.Param("id")
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if !validStatus(req.Status) {
		utils.Error(ctx, http.StatusBadRequest, 40022, "status must be draft or published")
		return
	}

	current, err := p.store.Get(id)
	if err != nil {
		p.respondError(ctx, err, nil)
		return
	}
	fields := req.fields()
	fields.Apply(&current)
	if err := validateCandidate(current); err != nil {
		p.respondError(ctx, err, nil)
		return
	}

	post, err := p.store.Update(ctx.Request.Context(), id, fields)
	if err != nil {
		p.respondError(ctx, err, &post)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost soft-deletes a post; it stays recoverable for the retention window.
func (p *PostController) DeletePost(ctx *gin.Context) {
	if err := p.store.SoftDelete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		p.respondError(ctx, err, nil)
		return
	}
	utils.Success(ctx, gin.H{
		"message":          "post deleted",
		"recoverable_days": int(p.store.Retention() / (24 * time.Hour)),
	})
}

// RestorePost undoes a soft delete that has not been purged yet.
func (p *PostController) RestorePost(ctx *gin.Context) {
	post, err := p.store.Restore(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		p.respondError(ctx, err, &post)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// UploadImage checks an image and returns it as a data URI for Post.image.
func (p *PostController) UploadImage(ctx *gin.Context) {
	// Accept common field name 'file' or fallback to 'f'
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		file, header, err = ctx.Request.FormFile("f")
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40030, "no file uploaded")
			return
		}
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := validation.ValidateImage(validation.ImageFile{ContentType: contentType, Size: header.Size}); err != nil {
		p.respondError(ctx, err, nil)
		return
	}

	// the declared size may lie; enforce the limit on what is actually read
	data, err := io.ReadAll(&io.LimitedReader{R: file, N: validation.MaxImageBytes + 1})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to read file")
		return
	}
	if err := validation.ValidateImage(validation.ImageFile{ContentType: contentType, Size: int64(len(data))}); err != nil {
		p.respondError(ctx, err, nil)
		return
	}

	utils.Success(ctx, gin.H{
		"image": validation.ImageDataURI(contentType, data),
		"size":  len(data),
	})
}

// validateCandidate runs the form checks on a post about to be committed,
// including an embedded data URI image.
func validateCandidate(post models.Post) error {
	if err := validation.ValidatePost(validation.PostInput{
		Title:       post.Title,
		Description: post.Description,
		Content:     post.Content,
		Category:    post.Category,
	}).Err(); err != nil {
		return err
	}
	if post.Image != nil {
		return checkImageRef(*post.Image)
	}
	return nil
}

// checkImageRef applies the upload constraints to data URIs; plain URLs pass.
func checkImageRef(ref string) error {
	if !strings.HasPrefix(ref, "data:") {
		return nil
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return &validation.ImageConstraintError{ContentType: meta, Reason: "malformed data URI"}
	}
	contentType := strings.TrimSuffix(meta, ";base64")
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return &validation.ImageConstraintError{ContentType: contentType, Reason: "malformed data URI"}
	}
	return validation.ValidateImage(validation.ImageFile{ContentType: contentType, Size: int64(len(decoded))})
}

// respondError maps domain errors onto the JSON envelope. post is echoed back
// when a save failed after the store already applied the change.
func (p *PostController) respondError(ctx *gin.Context, err error, post *models.Post) {
	respondError(ctx, p.log, err, post)
}

func respondError(ctx *gin.Context, log *zap.Logger, err error, post *models.Post) {
	var verr *validation.ValidationError
	var serr *storage.StorageError
	switch {
	case errors.As(err, &verr):
		utils.ErrorWithData(ctx, http.StatusBadRequest, 40021, "validation failed", gin.H{"errors": verr.Fields})
	case errors.Is(err, validation.ErrImageConstraint):
		utils.Error(ctx, http.StatusBadRequest, 40031, "Only JPG/PNG files up to 1MB are allowed")
	case errors.Is(err, store.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
	case errors.Is(err, query.ErrInvalidPageSize):
		utils.Error(ctx, http.StatusBadRequest, 40023, err.Error())
	case errors.As(err, &serr):
		log.Error("persist failed, change kept in memory", zap.Error(err))
		data := gin.H{"unsaved": true}
		if post != nil && post.ID != "" {
			data["post"] = post
		}
		utils.ErrorWithData(ctx, http.StatusInternalServerError, 50020, "change applied but not saved", data)
	default:
		log.Error("request failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
	}
}

// parsePagination falls back to the stored preferences for absent values.
func parsePagination(pageStr, sizeStr string, prefs models.PaginationPrefs) (page, size int, ok bool) {
	page, size = prefs.Page, prefs.Size
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = query.DefaultPageSize
	}
	if pageStr != "" {
		v, err := strconv.Atoi(pageStr)
		if err != nil {
			return 0, 0, false
		}
		page = v
	}
	if sizeStr != "" {
		v, err := strconv.Atoi(sizeStr)
		if err != nil || v < 1 || v > 100 {
			return 0, 0, false
		}
		size = v
	}
	return page, size, true
}
