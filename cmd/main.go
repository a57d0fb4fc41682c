package main

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kamenolom/transport-service/internal/assignment"
	"github.com/kamenolom/transport-service/internal/auth"
	"github.com/kamenolom/transport-service/internal/db"
	"github.com/kamenolom/transport-service/internal/events"
	"github.com/kamenolom/transport-service/internal/handlers"
	"github.com/kamenolom/transport-service/internal/models"
	"github.com/kamenolom/transport-service/internal/repository"
	"github.com/kamenolom/transport-service/internal/router"
	"github.com/kamenolom/transport-service/internal/router/config"
	"github.com/kamenolom/transport-service/internal/services"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	runDBMigration(cfg.MigrationURL, cfg.PostgresConn)

	dbPool, err := db.InitDb(cfg)
	if err != nil {
		log.Fatalf("error initializing database: %v", err)
	}
	defer dbPool.Close()

	logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

	dispatcher := initDispatcher(cfg, logger)

	requestRepo := repository.NewPostgresRequestRepository(dbPool)
	acceptanceRepo := repository.NewPostgresAcceptanceRepository(dbPool)
	itemRepo := repository.NewPostgresItemRepository(dbPool)
	userRepo := repository.NewPostgresUserRepository(dbPool)

	resolver := assignment.NewResolver(userRepo)

	fulfillmentService := services.NewFulfillmentService(requestRepo, acceptanceRepo, itemRepo, dispatcher, logger)
	acceptanceService := services.NewAcceptanceService(requestRepo, acceptanceRepo, resolver, fulfillmentService, dispatcher)
	requestService := services.NewRequestService(requestRepo, acceptanceRepo, resolver, dispatcher)

	requestHandler := handlers.NewRequestHandler(requestService, logger, 5*time.Second)
	acceptanceHandler := handlers.NewAcceptanceHandler(acceptanceService, logger, 5*time.Second)
	itemHandler := handlers.NewItemHandler(fulfillmentService, logger, 5*time.Second)
	reportHandler := handlers.NewReportHandler(fulfillmentService, userRepo, logger, 30*time.Second)

	authenticate := auth.Middleware([]byte(cfg.JWTSecret))
	routes := router.InitRoutes(requestHandler, acceptanceHandler, itemHandler, reportHandler, authenticate)

	log.Printf("server is listening on %s...", cfg.ServerAddress)
	if err := http.ListenAndServe(cfg.ServerAddress, routes); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// initDispatcher publishes to Kafka when brokers are configured, otherwise
// to an in-process bus that only the log subscriber listens to.
func initDispatcher(cfg config.Config, logger *log.Logger) events.Dispatcher {
	if cfg.KafkaBrokers == "" {
		bus := events.NewBus(logger)
		bus.Subscribe(func(event models.EventType, payload []byte) {
			logger.Printf("event %s: %s", event, payload)
		})
		return bus
	}
	dispatcher, err := events.NewKafkaDispatcher(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic, logger)
	if err != nil {
		log.Fatalf("error connecting to kafka: %v", err)
	}
	return dispatcher
}

func runDBMigration(migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatal("cannot create a new migrate instance", err)
	}

	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal("failed to run migrate up:", err)
	}
	log.Println("db migrated successfully")
}
