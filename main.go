package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"todoapp/internal/auth"
	"todoapp/internal/config"
	"todoapp/internal/database"
	"todoapp/internal/handlers"
	"todoapp/internal/middleware"
	"todoapp/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(cfg.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureUserIndexes(db); err != nil {
		log.Printf("user index warning: %v", err)
	}
	if err := database.EnsureTokenIndexes(db); err != nil {
		log.Printf("token index warning: %v", err)
	}
	if err := database.EnsureItemIndexes(db); err != nil {
		log.Printf("item index warning: %v", err)
	}

	users := store.NewUserStore(db)
	ledger := store.NewTokenLedger(db)
	items := store.NewItemStore(db)
	tokens := auth.NewService(cfg, users, ledger)

	r := gin.Default()

	account := r.Group("/api/AutManagement")
	{
		account.POST("/Register", handlers.Register(users, tokens))
		account.POST("/Login", handlers.Login(users, tokens))
		account.POST("/RefreshToken", handlers.RefreshToken(tokens))
		account.POST("/Logout", handlers.Logout(tokens))
	}

	todo := r.Group("/api/Todo")
	todo.Use(middleware.Auth(cfg))
	{
		todo.GET("", handlers.GetItems(items))
		todo.GET("/:id", handlers.GetItem(items))
		todo.POST("", handlers.CreateItem(items))
		todo.PUT("/:id", handlers.UpdateItem(items))
		todo.DELETE("/:id", handlers.DeleteItem(items))
	}

	r.Run(":" + cfg.Port)
}
