package conversations

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-history/internal/config"
	"github.com/chirino/chat-history/internal/history"
	"github.com/chirino/chat-history/internal/model"
	registryroute "github.com/chirino/chat-history/internal/registry/route"
	"github.com/chirino/chat-history/internal/session"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 100,
		Type:  registryroute.RouteTypeMain,
		Loader: func(r gin.IRouter, svc *history.Service) error {
			if svc == nil {
				return fmt.Errorf("conversations routes need a history service")
			}
			MountRoutes(r, svc)
			return nil
		},
	})
}

// MountRoutes mounts the conversation and navigation routes under /v1.
func MountRoutes(r gin.IRouter, svc *history.Service) {
	g := r.Group("/v1")

	g.GET("/conversations", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"conversations": svc.GetConversations()})
	})
	g.GET("/conversations/:conversationId", func(c *gin.Context) {
		record, ok := svc.GetConversation(c.Param("conversationId"))
		if !ok {
			handleError(c, &history.NotFoundError{Resource: "conversation", ID: c.Param("conversationId")})
			return
		}
		c.JSON(http.StatusOK, newConversationView(record))
	})
	g.POST("/conversations/:conversationId/open", func(c *gin.Context) {
		openConversation(c, svc)
	})
	g.POST("/conversations/:conversationId/more", func(c *gin.Context) {
		loadMore(c, svc)
	})
	g.POST("/conversations/:conversationId/messages", func(c *gin.Context) {
		appendMessage(c, svc)
	})
	g.POST("/conversations/:conversationId/close", func(c *gin.Context) {
		if err := svc.CloseConversation(c.Param("conversationId")); err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, newNavigationView(svc.Session()))
	})

	g.GET("/navigation", func(c *gin.Context) {
		c.JSON(http.StatusOK, newNavigationView(svc.Session()))
	})
	g.POST("/navigation/profile", func(c *gin.Context) {
		userID := c.DefaultQuery("userId", svc.Session().UserID())
		svc.Session().Push(session.Profile{UserID: userID})
		c.JSON(http.StatusOK, newNavigationView(svc.Session()))
	})
	g.POST("/navigation/back", func(c *gin.Context) {
		svc.Session().Back()
		c.JSON(http.StatusOK, newNavigationView(svc.Session()))
	})
}

func openConversation(c *gin.Context, svc *history.Service) {
	minDisplay, err := queryInt(c, "minDisplay", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": "minDisplay"})
		return
	}
	record, err := svc.OpenConversation(c.Request.Context(), c.Param("conversationId"), minDisplay)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newConversationView(record))
}

func loadMore(c *gin.Context, svc *history.Service) {
	id := c.Param("conversationId")
	loaded, err := svc.LoadMoreChatHistory(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	record, _ := svc.GetConversation(id)
	view := newConversationView(record)
	view.Loaded = &loaded
	c.JSON(http.StatusOK, view)
}

func appendMessage(c *gin.Context, svc *history.Service) {
	var req struct {
		Sender    string `json:"sender"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "message is required", "field": "message"})
		return
	}
	msg := model.Message{Sender: req.Sender, Body: req.Message, Timestamp: req.Timestamp}
	if msg.Sender == "" {
		msg.Sender = config.LocalUserMarker
	}
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	id := c.Param("conversationId")
	result, err := svc.AppendMessage(c.Request.Context(), id, msg)
	var notSaved *history.IndexNotSavedError
	if err != nil && !errors.As(err, &notSaved) {
		handleError(c, err)
		return
	}
	record, _ := svc.GetConversation(id)
	view := newConversationView(record)
	view.NewPage = &result.NewPage
	view.PageIndex = &result.PageIndex
	if notSaved != nil {
		// The message is stored; a retry would duplicate it.
		log.Warn("Conversation index not saved after append", "conversation", id, "err", notSaved.Err)
		view.Warning = "index_not_saved"
	}
	c.JSON(http.StatusCreated, view)
}

func handleError(c *gin.Context, err error) {
	var notFound *history.NotFoundError
	var notInitialized *history.NotInitializedError
	var storage *history.StorageError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &notInitialized):
		c.JSON(http.StatusConflict, gin.H{"code": "not_initialized", "error": err.Error()})
	case errors.As(err, &storage):
		c.JSON(http.StatusInternalServerError, gin.H{"code": "storage_unavailable", "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %q", key, v)
	}
	return i, nil
}
