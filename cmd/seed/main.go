package main

import (
	"context"
	"errors"
	"log"
	"time"

	"smarthub-backend/internal/admins"
	"smarthub-backend/internal/auth"
	"smarthub-backend/internal/config"
	"smarthub-backend/internal/db"
	"smarthub-backend/internal/profile"
	"smarthub-backend/internal/services"
)

type seedService struct {
	ID          string
	Title       string
	Description string
	Icon        string
	Features    []string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	catalog := []seedService{
		{ID: "web-development", Title: "Web development", Description: "Fast, accessible websites and web applications.", Icon: "code", Features: []string{"Responsive design", "SEO basics", "CMS integration"}},
		{ID: "mobile-development", Title: "Mobile development", Description: "Cross-platform mobile apps from prototype to store release.", Icon: "smartphone", Features: []string{"iOS and Android", "Push notifications", "Offline mode"}},
		{ID: "ui-ux-design", Title: "UI/UX design", Description: "Interfaces designed around real user journeys.", Icon: "palette", Features: []string{"Wireframes", "Prototypes", "Design systems"}},
		{ID: "consulting", Title: "Technical consulting", Description: "Architecture reviews and delivery planning.", Icon: "lightbulb", Features: []string{"Audits", "Roadmaps"}},
		{ID: "maintenance", Title: "Maintenance", Description: "Updates, monitoring and fixes for live products.", Icon: "wrench", Features: []string{"Security updates", "Backups", "Uptime checks"}},
	}

	manager := services.NewManager(services.NewRepository(cols.Services), cfg.Timezone)
	for i, svc := range catalog {
		order := i
		features := svc.Features
		_, err := manager.Create(ctx, services.Input{
			ID:          svc.ID,
			Title:       &svc.Title,
			Description: &svc.Description,
			Icon:        &svc.Icon,
			Features:    &features,
			Status:      services.StatusActive,
			Order:       &order,
		})
		switch {
		case errors.Is(err, services.ErrDuplicateID):
			log.Printf("seed service: %s exists, skipping", svc.ID)
		case err != nil:
			log.Fatalf("seed error for %s: %v", svc.ID, err)
		}
	}

	if _, err := profile.NewService(profile.NewRepository(cols.Profiles), cfg.Timezone).Get(ctx); err != nil {
		log.Fatalf("seed profile error: %v", err)
	}

	if cfg.SetupAdminPassword != "" {
		tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL, "smarthub-backend")
		adminService := admins.NewService(admins.NewRepository(cols.Admins), tokens, db.NewPinger(client), admins.SetupDefaults{
			Email:    cfg.SetupAdminEmail,
			Password: cfg.SetupAdminPassword,
		}, cfg.Timezone)
		_, err := adminService.Setup(ctx, admins.SetupRequest{})
		switch {
		case errors.Is(err, admins.ErrAlreadyInitialized):
			log.Println("seed admin: already initialized, skipping")
		case err != nil:
			log.Fatalf("seed admin error: %v", err)
		}
	} else {
		log.Println("seed admin: SETUP_ADMIN_PASSWORD missing, skipping")
	}

	log.Println("seed completed")
}
