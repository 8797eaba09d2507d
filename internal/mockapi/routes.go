package mockapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": s.cfg.Node,
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/upload/image", s.uploadImage)
	s.router.POST("/users/create", s.createUser)
	s.router.GET("/users/:id", s.getUser)
}

type submitter struct {
	Name  string
	Email string
}

func bindSubmitter(c *gin.Context) (submitter, error) {
	sub := submitter{
		Name:  strings.TrimSpace(c.PostForm("name")),
		Email: strings.TrimSpace(c.PostForm("email")),
	}
	if sub.Name == "" || sub.Email == "" {
		return submitter{}, errors.New("name and email fields are required")
	}
	if _, err := mail.ParseAddress(sub.Email); err != nil {
		return submitter{}, fmt.Errorf("invalid email %q", sub.Email)
	}
	return sub, nil
}

func (s *Server) uploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image field is required"})
		return
	}
	sub, err := bindSubmitter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if file.Size > s.cfg.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file size exceeds the maximum limit"})
		return
	}

	size, err := countBytes(file)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}

	upload, err := s.store.SaveUpload(Upload{
		Name:        sub.Name,
		Email:       sub.Email,
		FileName:    file.Filename,
		Size:        size,
		ContentType: file.Header.Get("Content-Type"),
	})
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}

	log.Debug().Uint64("id", upload.ID).Str("filename", upload.FileName).Int64("size", upload.Size).Msg("mockapi upload stored")
	c.JSON(http.StatusCreated, gin.H{
		"id":           upload.ID,
		"name":         upload.Name,
		"email":        upload.Email,
		"filename":     upload.FileName,
		"size":         upload.Size,
		"content_type": upload.ContentType,
	})
}

func (s *Server) createUser(c *gin.Context) {
	sub, err := bindSubmitter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.store.CreateUser(sub.Name, sub.Email)
	if errors.Is(err, ErrDuplicateEmail) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
	})
}

func (s *Server) getUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	user, err := s.store.User(id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func countBytes(file *multipart.FileHeader) (int64, error) {
	src, err := file.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()
	return io.Copy(io.Discard, src)
}
