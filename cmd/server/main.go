package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/IsaacPaez/drivingschool-sub001/internal/cache"
	"github.com/IsaacPaez/drivingschool-sub001/internal/config"
	"github.com/IsaacPaez/drivingschool-sub001/internal/controller"
	"github.com/IsaacPaez/drivingschool-sub001/internal/middleware"
	"github.com/IsaacPaez/drivingschool-sub001/internal/rabbit"
	"github.com/IsaacPaez/drivingschool-sub001/internal/realtime"
	"github.com/IsaacPaez/drivingschool-sub001/internal/repository"
	"github.com/IsaacPaez/drivingschool-sub001/internal/service"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.Environment)
	defer logger.Sync()

	// Conexión a MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("Error conectando a MongoDB", zap.Error(err))
	}
	db := client.Database(cfg.MongoDBName)

	// Repositorios
	slotRepo := repository.NewMongoSlotRepository(db)
	cartRepo := repository.NewMongoCartRepository(db)
	orderRepo := repository.NewMongoOrderRepository(db)
	ticketRepo := repository.NewMongoTicketRepository(db)

	// Canal en vivo: instantánea completa por instructor, con throttle y
	// re-poll de respaldo.
	hub := realtime.NewHub(slotRepo.Snapshot, cfg.PushThrottle, cfg.PollInterval, logger)

	// Conexión a RabbitMQ
	conn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Fatal("Error conectando a RabbitMQ", zap.Error(err))
	}
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Error creando canal en RabbitMQ", zap.Error(err))
	}
	publisher, err := rabbit.NewPublisher(ch)
	if err != nil {
		logger.Fatal("Error declarando exchange de salida", zap.Error(err))
	}

	// Almacén TTL para códigos de verificación
	codes := cache.NewTTLStore(time.Minute)
	defer codes.Stop()

	// Servicios
	reservationService := service.NewReservationService(slotRepo, cartRepo, hub, logger)
	orderService := service.NewOrderService(orderRepo, slotRepo, publisher, hub, logger)
	ticketService := service.NewTicketService(ticketRepo, logger)
	verifyService := service.NewVerifyService(codes, cfg.VerifyCodeTTL, logger)
	authService := service.NewAuthService(cfg.AuthURL)

	// Handlers
	reservationCtl := controller.NewReservationController(reservationService)
	orderCtl := controller.NewOrderController(orderService)
	ticketCtl := controller.NewTicketController(ticketService)
	liveCtl := controller.NewLiveController(hub)
	verifyCtl := controller.NewVerifyController(verifyService)

	// Router
	r := gin.Default()

	// Rutas públicas
	r.POST("/verify/send", verifyCtl.SendCode)
	r.POST("/verify/check", verifyCtl.CheckCode)
	r.GET("/instructors/:instructorId/schedule", reservationCtl.GetSchedule)
	r.GET("/instructors/:instructorId/live", liveCtl.Stream)
	r.GET("/classes/:classId", ticketCtl.GetClass)

	// La pasarela de pagos vuelve por acá tras el redirect (también entra
	// por Rabbit).
	r.POST("/orders/update-status", orderCtl.UpdateStatus)

	// Rutas protegidas (requieren token)
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(authService))

	auth.POST("/reserve-pending", reservationCtl.ReservePending)
	auth.POST("/cart/add-lesson", reservationCtl.AddLesson)
	auth.POST("/cart/add-test", reservationCtl.AddTest)
	auth.POST("/cart/remove", reservationCtl.RemoveCartItem)
	auth.GET("/cart", reservationCtl.GetCart)
	auth.POST("/booking/cancel", reservationCtl.CancelBooking)
	auth.POST("/orders/create", orderCtl.CreateOrder)
	auth.GET("/orders/mine", orderCtl.GetMyOrders)
	auth.GET("/orders/:orderId", orderCtl.GetOrder)
	auth.POST("/classes/:classId/request", ticketCtl.RequestSeat)
	auth.POST("/classes/:classId/confirm", ticketCtl.ConfirmSeat)
	auth.POST("/classes/:classId/release", ticketCtl.ReleaseSeat)

	// Rutas admin
	admin := auth.Group("/admin")
	admin.Use(middleware.AdminOnly())
	admin.GET("/holds/stale", reservationCtl.GetStaleHolds)
	admin.POST("/classes/cancel", reservationCtl.CancelClass)

	rabbit.SetupConsumers(ch, orderService, logger)

	// Ejecutar servidor
	logger.Info("Reservation engine ejecutándose", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Servidor detenido", zap.Error(err))
	}
}
