// seed inserts development sample contacts for local testing by replaying a
// short purchase history through the reconciliation service. Idempotent:
// Identify creates nothing for already-known pairs.
package main

import (
	"context"
	"log"

	"customer-identity-plane/internal/config"
	contactrepo "customer-identity-plane/internal/contact/repository"
	contactservice "customer-identity-plane/internal/contact/service"
	"customer-identity-plane/internal/db"
)

// sampleRequests is a small history that yields one customer with a merged
// identity group and one independent customer.
var sampleRequests = []struct{ email, phone string }{
	{"lorraine@hillvalley.edu", "123456"},
	{"mcfly@hillvalley.edu", "123456"},
	{"george@hillvalley.edu", "919191"},
	{"biffsucks@hillvalley.edu", "717171"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	svc := contactservice.NewService(contactrepo.NewPostgresRepository(database))
	ctx := context.Background()

	for _, req := range sampleRequests {
		result, err := svc.Identify(ctx, req.email, req.phone)
		if err != nil {
			log.Fatalf("seed: identify (%s, %s): %v", req.email, req.phone, err)
		}
		log.Printf("seed: (%s, %s) -> primary %d, %d secondaries",
			req.email, req.phone, result.PrimaryContactID, len(result.SecondaryContactIDs))
	}
}
