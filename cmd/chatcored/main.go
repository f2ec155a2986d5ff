package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"chatcore/auth"
	"chatcore/bus"
	"chatcore/registry"
	"chatcore/session"
	"chatcore/store"
)

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func rateLimitErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", name, raw, fallback)
		return fallback
	}
	return n
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using environment")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	dbFile := os.Getenv("CHAT_DB_FILE")
	if dbFile == "" {
		dbFile = "chatcore.db"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	historyWindow := envInt("HISTORY_WINDOW", 50)
	storageTimeout := time.Duration(envInt("STORAGE_TIMEOUT_MS", 3000)) * time.Millisecond

	// Stable per-process id, for tracing which instance handled a connection.
	instanceID := uuid.NewString()
	startedAt := time.Now()
	log.Printf("Starting instance %s", instanceID)

	st, err := store.Open(dbFile)
	if err != nil {
		log.Fatal("Error opening database:", err)
	}
	defer st.Close()

	var fanout bus.Bus
	if redisAddr != "" {
		fanout, err = bus.NewRedisBus(redisAddr)
		if err != nil {
			log.Fatal("Error connecting to Redis:", err)
		}
		log.Printf("Fan-out via Redis at %s", redisAddr)
	} else {
		fanout = bus.NewMemoryBroker().Bus()
		log.Println("REDIS_ADDR not set; fan-out is process-local only")
	}
	defer fanout.Close()

	verifier := auth.NewVerifier(secret)
	minter := auth.NewMinter(secret)
	coordinator := session.NewCoordinator(registry.New(), st, fanout, session.Config{
		HistoryWindow:  historyWindow,
		StorageTimeout: storageTimeout,
	})

	r := gin.Default()

	rlStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Second,
		Limit: 100,
	})
	r.Use(ratelimit.RateLimiter(rlStore, &ratelimit.Options{
		ErrorHandler: rateLimitErrorHandler,
		KeyFunc:      keyFunc,
	}))
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":   "ok",
			"instance": instanceID,
			"uptime":   time.Since(startedAt).String(),
		})
	})
	r.POST("/api/guest_session", handleGuestSession(minter))
	r.GET("/ws", auth.RequireAuth(verifier), coordinator.HandleSocket)

	server := &http.Server{
		Addr:    port,
		Handler: r,
	}

	go func() {
		log.Printf("Listening on %s...", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Println("Server shutdown error:", err)
	}
}
