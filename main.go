package main

import (
	"flag"
	"log"

	"disaster-posts-viewer/config"
	"disaster-posts-viewer/database"
	"disaster-posts-viewer/handlers"
	"disaster-posts-viewer/prefs"
	"disaster-posts-viewer/upstream"
	"disaster-posts-viewer/web"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if cfg.UsesDefaultSecret() {
		log.Printf("WARNING: session.secret is the built-in default; set it in %s or VIEWER_SESSION_SECRET", *configPath)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}

	templates, err := web.Templates()
	if err != nil {
		log.Fatal("Failed to parse templates:", err)
	}

	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	store := prefs.NewStore(db, cfg.List.DefaultPerPage, cfg.List.PerPageOptions)

	h, err := handlers.New(cfg, client, store, templates)
	if err != nil {
		log.Fatal("Failed to create handlers:", err)
	}
	defer h.Close()

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	r.SetHTMLTemplate(templates)

	sessionStore := cookie.NewStore([]byte(cfg.Session.Secret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
	})

	r.Use(handlers.SecurityHeaders())
	r.Use(sessions.Sessions(cfg.Session.Name, sessionStore))
	r.Use(handlers.ClientID())

	h.Register(r)

	log.Printf("Starting disaster posts viewer on :%s", cfg.Server.Port)
	log.Printf("Posts: http://localhost:%s/posts (upstream %s)", cfg.Server.Port, cfg.Upstream.BaseURL)

	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
