package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"craftriver/blobstore"
	"craftriver/config"
	"craftriver/db"
	"craftriver/media"
	"craftriver/msgs"
	"craftriver/posts"
	"craftriver/products"
	"craftriver/profile"
	"craftriver/ratelim"
	"craftriver/rdx"
	"craftriver/routes"
	"craftriver/tutorials"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		// Media responses set their own cache policy; everything else is
		// dynamic API output.
		if !strings.HasPrefix(r.URL.Path, media.RefPrefix) {
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s from %s - %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func main() {
	cfg := config.Load()

	database, err := db.Init(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("mongo init: %v", err)
	}
	if err := rdx.Init(cfg.RedisAddr); err != nil {
		log.Fatalf("redis init: %v", err)
	}

	store, err := blobstore.NewGridFS(database)
	if err != nil {
		log.Fatalf("blob store init: %v", err)
	}

	ingestor := &media.Ingestor{Store: store}
	cleaner := &media.Cleaner{Store: store}

	hub := msgs.NewHub()
	go hub.Run()

	handlers := routes.Handlers{
		Media:     &media.Handler{Srv: &media.Server{Store: store}},
		Posts:     &posts.Handler{Ingest: ingestor, Clean: cleaner},
		Tutorials: &tutorials.Handler{Ingest: ingestor, Clean: cleaner},
		Products:  &products.Handler{Ingest: ingestor, Clean: cleaner},
		Profile:   &profile.Handler{Ingest: ingestor, Clean: cleaner},
		Msgs:      &msgs.Handler{Hub: hub},
	}

	rateLimiter := ratelim.NewRateLimiter()

	router := httprouter.New()
	router.GET("/health", Index)
	routes.RoutesWrapper(router, rateLimiter, handlers)

	// middleware order: logging → security headers → CORS → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
	}).Handler(router)

	handler := loggingMiddleware(securityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Println("Shutting down message hub...")
		hub.Stop()
	})

	go func() {
		log.Printf("Server listening on %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutdown signal received; shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Graceful shutdown failed: %v", err)
	}
	if err := db.Close(ctx); err != nil {
		log.Printf("mongo close: %v", err)
	}

	log.Println("Server stopped cleanly")
}
