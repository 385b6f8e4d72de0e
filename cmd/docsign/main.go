package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/draftdeck/draftdeck/internal/database"
	"github.com/draftdeck/draftdeck/internal/document/handler"
	"github.com/draftdeck/draftdeck/internal/document/repository"
	"github.com/draftdeck/draftdeck/internal/document/service"
	"github.com/draftdeck/draftdeck/internal/payment"
)

// Standalone document service: the lifecycle and signing API without the
// importer, auth or metrics stack. Useful for local frontend work.
func main() {
	port := os.Getenv("DOC_SERVICE_PORT")
	if port == "" {
		port = "5010"
	}
	signBase := os.Getenv("SIGNING_BASE_URL")
	if signBase == "" {
		signBase = "http://localhost:" + port
	}

	r := gin.New()
	r.Use(gin.Recovery())

	var repo repository.Repository
	var payRepo payment.Repository
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		client, err := database.ConnectMongo(context.Background(), uri, 10*time.Second)
		if err != nil {
			log.Printf("warning: cannot connect to MongoDB (%v), using memory-backed repo", err)
		} else {
			db := client.Database(os.Getenv("MONGODB_DATABASE"))
			repo = repository.NewMongoRepo(db.Collection("documents"))
			payRepo = payment.NewMongoRepo(db.Collection("payments"))
		}
	}
	if repo == nil {
		repo = repository.NewMemoryRepo()
		payRepo = payment.NewMemoryRepo()
	}

	gate := payment.NewGate(payRepo)
	svc := service.New(repo, gate, nil, signBase)
	handler.RegisterDocumentRoutes(r, svc, gate)

	log.Printf("document service listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
