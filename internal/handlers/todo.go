package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"todoapp/internal/models"
	"todoapp/internal/store"
)

// ItemStorage is the slice of the item store the todo handlers need.
type ItemStorage interface {
	List(ctx context.Context, userID primitive.ObjectID, page, limit int64) ([]models.Item, error)
	Get(ctx context.Context, userID, id primitive.ObjectID) (*models.Item, error)
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, userID, id primitive.ObjectID, title, details string, completed bool) error
	Delete(ctx context.Context, userID, id primitive.ObjectID) error
}

type ItemRequest struct {
	Title     string `json:"title" binding:"required"`
	Details   string `json:"details"`
	Completed bool   `json:"completed"`
}

func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	value, ok := c.Get("userId")
	if !ok {
		log.Println("[TODO] [ERROR] userId missing in context")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return primitive.NilObjectID, false
	}
	userID, ok := value.(primitive.ObjectID)
	if !ok {
		log.Println("[TODO] [ERROR] userId has wrong type")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return primitive.NilObjectID, false
	}
	return userID, true
}

func GetItems(items ItemStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pagination params"})
			return
		}

		list, err := items.List(c.Request.Context(), userID, page, limit)
		if err != nil {
			log.Println("[TODO] [ERROR] list failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		log.Printf("[TODO] [INFO] items fetched, from: %s", c.ClientIP())
		c.JSON(http.StatusOK, list)
	}
}

func GetItem(items ItemStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
			return
		}

		item, err := items.Get(c.Request.Context(), userID, id)
		if err != nil {
			if errors.Is(err, store.ErrItemNotFound) {
				log.Printf("[TODO] [WARN] item %s not found, from: %s", id.Hex(), c.ClientIP())
				c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
				return
			}
			log.Println("[TODO] [ERROR] get failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		log.Printf("[TODO] [INFO] item %s fetched, from: %s", id.Hex(), c.ClientIP())
		c.JSON(http.StatusOK, item)
	}
}

func CreateItem(items ItemStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		var req ItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}

		item := models.Item{
			UserID:    userID,
			Title:     req.Title,
			Details:   req.Details,
			Completed: req.Completed,
		}

		if err := items.Create(c.Request.Context(), &item); err != nil {
			log.Println("[TODO] [ERROR] create failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		log.Printf("[TODO] [INFO] item %s added, from: %s", item.ID.Hex(), c.ClientIP())
		c.JSON(http.StatusCreated, item)
	}
}

func UpdateItem(items ItemStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			log.Printf("[TODO] [WARN] put with faulty id, from: %s", c.ClientIP())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
			return
		}

		var req ItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}

		if err := items.Update(c.Request.Context(), userID, id, req.Title, req.Details, req.Completed); err != nil {
			if errors.Is(err, store.ErrItemNotFound) {
				log.Printf("[TODO] [WARN] tried updating non-existing item %s, from: %s", id.Hex(), c.ClientIP())
				c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
				return
			}
			log.Println("[TODO] [ERROR] update failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		log.Printf("[TODO] [INFO] item %s put, from: %s", id.Hex(), c.ClientIP())
		c.Status(http.StatusNoContent)
	}
}

func DeleteItem(items ItemStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
			return
		}

		if err := items.Delete(c.Request.Context(), userID, id); err != nil {
			if errors.Is(err, store.ErrItemNotFound) {
				log.Printf("[TODO] [WARN] tried deleting non-existing item %s, from: %s", id.Hex(), c.ClientIP())
				c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
				return
			}
			log.Println("[TODO] [ERROR] delete failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		log.Printf("[TODO] [INFO] item %s deleted, from: %s", id.Hex(), c.ClientIP())
		c.Status(http.StatusNoContent)
	}
}
